package pipeline

import (
	"reflect"
)

// DirtyTracker lưu snapshot field values tại thời điểm một step được completed
// lần đầu, và so sánh với giá trị đang sống để tính dirtiness.
// Snapshot key theo step id; so sánh deep equality vì field có thể là object lồng.
type DirtyTracker struct {
	snapshots map[string]map[string]interface{}
}

// NewDirtyTracker tạo tracker rỗng
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		snapshots: make(map[string]map[string]interface{}),
	}
}

// Restore dựng lại tracker từ snapshots đã persist trong project document
func Restore(snapshots map[string]map[string]interface{}) *DirtyTracker {
	t := NewDirtyTracker()
	for stepID, snap := range snapshots {
		copied := make(map[string]interface{}, len(snap))
		for k, v := range snap {
			copied[k] = v
		}
		t.snapshots[stepID] = copied
	}
	return t
}

// CaptureSnapshot lưu shallow copy của các tracked field values.
// Gọi đúng một lần khi step chuyển vào completedSteps; idempotent:
// không làm gì nếu snapshot của step đã tồn tại.
func (t *DirtyTracker) CaptureSnapshot(stepID string, trackedFields []string, currentValues map[string]interface{}) {
	if _, exists := t.snapshots[stepID]; exists {
		return
	}

	snap := make(map[string]interface{}, len(trackedFields))
	for _, field := range trackedFields {
		if v, ok := currentValues[field]; ok {
			snap[field] = v
		}
	}
	t.snapshots[stepID] = snap
}

// HasSnapshot cho biết step đã có snapshot chưa
func (t *DirtyTracker) HasSnapshot(stepID string) bool {
	_, ok := t.snapshots[stepID]
	return ok
}

// IsDirty trả về true nếu bất kỳ tracked field nào khác snapshot
// (deep equality, không phải reference equality).
// Step chưa từng completed không có snapshot: dirtiness vô nghĩa, short-circuit false.
func (t *DirtyTracker) IsDirty(stepID string, trackedFields []string, currentValues map[string]interface{}) bool {
	snap, ok := t.snapshots[stepID]
	if !ok {
		return false
	}

	for _, field := range trackedFields {
		snapVal, inSnap := snap[field]
		curVal, inCur := currentValues[field]
		if inSnap != inCur {
			return true
		}
		if inSnap && !reflect.DeepEqual(normalizeNumber(snapVal), normalizeNumber(curVal)) {
			return true
		}
	}
	return false
}

// Clear xóa snapshot của step; gọi sau cascade reset hoặc khi step được recomplete
func (t *DirtyTracker) Clear(stepID string) {
	delete(t.snapshots, stepID)
}

// Snapshots trả về state để persist vào project document
func (t *DirtyTracker) Snapshots() map[string]map[string]interface{} {
	return t.snapshots
}

// normalizeNumber quy các kiểu số về float64 để so sánh.
// JSON decode cho float64, BSON decode cho int32/int64; cùng một giá trị
// đọc từ hai đường không được coi là khác nhau.
func normalizeNumber(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, val := range n {
			out[k] = normalizeNumber(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(n))
		for i, val := range n {
			out[i] = normalizeNumber(val)
		}
		return out
	default:
		return v
	}
}
