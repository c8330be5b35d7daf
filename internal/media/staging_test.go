package media

import (
	"testing"
	"time"
)

func TestStagingPutGetRemove(t *testing.T) {
	store := NewStagingStore(time.Minute)

	key := store.Put("anh-san-pham.png", "image/png", []byte{1, 2, 3})
	if key == "" {
		t.Fatal("Put phải trả về key")
	}

	e, ok := store.Get(key)
	if !ok {
		t.Fatal("Get phải tìm thấy entry vừa Put")
	}
	if e.FileName != "anh-san-pham.png" || len(e.Data) != 3 {
		t.Errorf("Entry sai nội dung: %+v", e)
	}

	store.Remove(key)
	if _, ok := store.Get(key); ok {
		t.Error("Entry phải biến mất sau Remove")
	}
}

func TestSweepXoaTheoTuoi(t *testing.T) {
	store := NewStagingStore(50 * time.Millisecond)

	oldKey := store.Put("cu.png", "image/png", []byte{1})
	// Ép entry thành già bằng cách chỉnh CreatedAt trực tiếp
	store.mu.Lock()
	store.entries[oldKey].CreatedAt = time.Now().Add(-time.Second)
	store.mu.Unlock()

	freshKey := store.Put("moi.png", "image/png", []byte{2})

	removed := store.Sweep()
	if removed != 1 {
		t.Errorf("Sweep phải xóa đúng 1 entry già, got %d", removed)
	}
	if _, ok := store.Get(oldKey); ok {
		t.Error("Entry quá TTL phải bị xóa")
	}
	if _, ok := store.Get(freshKey); !ok {
		t.Error("Entry còn hạn phải được giữ")
	}
	if store.Len() != 1 {
		t.Errorf("Len phải là 1, got %d", store.Len())
	}
}
