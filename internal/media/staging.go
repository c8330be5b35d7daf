package media

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// StagedUpload là một file tạm giữ trong bộ nhớ trước khi được đẩy lên
// blob store và gắn vào step data
type StagedUpload struct {
	Key         string
	FileName    string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// StagingStore là map in-memory có TTL cho upload staging.
// Đây là shared mutable state duy nhất ngoài database: entry quá TTL bị
// sweep xóa theo tuổi, bất kể có được đọc hay không.
type StagingStore struct {
	mu      sync.RWMutex
	entries map[string]*StagedUpload
	ttl     time.Duration
}

// NewStagingStore tạo staging store với TTL cho mỗi entry
func NewStagingStore(ttl time.Duration) *StagingStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StagingStore{
		entries: make(map[string]*StagedUpload),
		ttl:     ttl,
	}
}

// Put giữ một file tạm, trả về key tra cứu
func (s *StagingStore) Put(fileName, contentType string, data []byte) string {
	key := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &StagedUpload{
		Key:         key,
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now(),
	}
	return key
}

// Get tra file tạm theo key
func (s *StagingStore) Get(key string) (*StagedUpload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Remove xóa entry sau khi đã upload xong
func (s *StagingStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Sweep xóa mọi entry già hơn TTL (age-based, không reset theo access).
// Trả về số entry đã xóa.
func (s *StagingStore) Sweep() int {
	cutoff := time.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len trả về số entry đang giữ
func (s *StagingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
