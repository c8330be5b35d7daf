package videosvc

import (
	"reflect"
	"testing"
)

func TestAppendStepValueGiuPhanTuCu(t *testing.T) {
	current := map[string]interface{}{
		"referenceImages": []interface{}{"https://cdn.example.com/a.png"},
		"notes":           "giữ nguyên",
	}

	out := appendStepValue(current, "referenceImages", "https://cdn.example.com/b.png")

	images, _ := out["referenceImages"].([]interface{})
	want := []interface{}{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}
	if !reflect.DeepEqual(images, want) {
		t.Errorf("referenceImages = %v, muốn %v", images, want)
	}
	if out["notes"] != "giữ nguyên" {
		t.Error("Key khác trong step data phải được giữ nguyên")
	}
}

func TestAppendStepValueKeyChuaTonTai(t *testing.T) {
	out := appendStepValue(map[string]interface{}{}, "referenceImages", "https://cdn.example.com/a.png")

	images, _ := out["referenceImages"].([]interface{})
	if len(images) != 1 || images[0] != "https://cdn.example.com/a.png" {
		t.Errorf("Append vào key chưa có phải tạo mảng 1 phần tử, got %v", images)
	}
}

// Hai upload song song cùng xuất phát từ một bản đọc: writer thua CAS phải
// tính lại mảng từ data MỚI sau retry, giữ được URL của writer thắng.
// Đây là lý do upload đi qua AppendStepList thay vì patch nguyên mảng:
// patch mang mảng tính từ bản đọc cũ thì CAS pass vẫn mất phần tử.
func TestAppendStepValueTinhLaiSauConflict(t *testing.T) {
	base := map[string]interface{}{}
	urlA := "https://cdn.example.com/a.png"
	urlB := "https://cdn.example.com/b.png"

	// Writer A commit trước
	afterA := appendStepValue(base, "referenceImages", urlA)

	// Writer B thua CAS, attempt sau đọc lại document đã có urlA
	afterB := appendStepValue(afterA, "referenceImages", urlB)

	images, _ := afterB["referenceImages"].([]interface{})
	if !reflect.DeepEqual(images, []interface{}{urlA, urlB}) {
		t.Errorf("Retry phải giữ cả hai URL, got %v", images)
	}
}

func TestAppendStepValueKhongMutateNguon(t *testing.T) {
	current := map[string]interface{}{
		"referenceImages": []interface{}{"https://cdn.example.com/a.png"},
	}

	_ = appendStepValue(current, "referenceImages", "https://cdn.example.com/b.png")

	images, _ := current["referenceImages"].([]interface{})
	if len(images) != 1 {
		t.Errorf("appendStepValue không được mutate data nguồn, got %v", images)
	}
}
