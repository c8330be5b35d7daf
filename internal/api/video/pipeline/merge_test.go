package pipeline

import (
	"reflect"
	"testing"
)

func TestDeepMergeTombstoneLong(t *testing.T) {
	dst := map[string]interface{}{
		"a": map[string]interface{}{"b": 1, "c": 2},
	}
	patch := map[string]interface{}{
		"a": map[string]interface{}{"b": nil},
	}

	got := DeepMerge(dst, patch)

	want := map[string]interface{}{
		"a": map[string]interface{}{"c": 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tombstone lồng không xóa đúng key: got %v, want %v", got, want)
	}
}

func TestDeepMergeTombstoneTopLevel(t *testing.T) {
	dst := map[string]interface{}{"a": 1, "b": 2}
	got := DeepMerge(dst, map[string]interface{}{"a": nil})

	if _, ok := got["a"]; ok {
		t.Error("Key 'a' phải bị xóa bởi tombstone")
	}
	if got["b"] != 2 {
		t.Errorf("Key 'b' phải còn nguyên, got %v", got["b"])
	}
}

func TestDeepMergeArrayGhiDe(t *testing.T) {
	dst := map[string]interface{}{
		"beats": []interface{}{"x", "y"},
	}
	patch := map[string]interface{}{
		"beats": []interface{}{"z"},
	}

	got := DeepMerge(dst, patch)

	want := []interface{}{"z"}
	if !reflect.DeepEqual(got["beats"], want) {
		t.Errorf("Array phải bị ghi đè chứ không merge: got %v", got["beats"])
	}
}

func TestDeepMergeKhongMutateDst(t *testing.T) {
	dst := map[string]interface{}{"a": 1}
	_ = DeepMerge(dst, map[string]interface{}{"a": nil, "b": 2})

	if dst["a"] != 1 {
		t.Error("DeepMerge không được mutate dst")
	}
	if _, ok := dst["b"]; ok {
		t.Error("DeepMerge không được thêm key vào dst")
	}
}

func TestDeepMergeMapDeScalarVanXuLyTombstone(t *testing.T) {
	// Patch map đè lên giá trị scalar hiện có: tombstone bên trong patch
	// vẫn phải được áp dụng, không được chép nguyên xi
	dst := map[string]interface{}{"a": "scalar"}
	patch := map[string]interface{}{
		"a": map[string]interface{}{"b": 1, "c": nil},
	}

	got := DeepMerge(dst, patch)

	inner, ok := got["a"].(map[string]interface{})
	if !ok {
		t.Fatalf("Key 'a' phải là map sau merge, got %T", got["a"])
	}
	if inner["b"] != 1 {
		t.Errorf("inner b: got %v, want 1", inner["b"])
	}
	if _, ok := inner["c"]; ok {
		t.Error("Tombstone 'c' bên trong patch map phải bị xóa")
	}
}

func TestAccumulatedReadVersioned(t *testing.T) {
	// Document v1: visualBeats nằm ở step3Data; đọc qua candidate list
	// vẫn phải tìm thấy (first-match-wins, step2 trước step3)
	acc := Accumulated{
		Mode: ModeCommerce,
		Steps: map[int]map[string]interface{}{
			3: {"visualBeats": []interface{}{"beat-1"}},
		},
	}

	v, ok := acc.Read(LocVisualBeats)
	if !ok {
		t.Fatal("Phải đọc được visualBeats từ vị trí fallback step3Data")
	}
	beats, _ := v.([]interface{})
	if len(beats) != 1 || beats[0] != "beat-1" {
		t.Errorf("visualBeats sai: got %v", v)
	}

	// Document v2: step2Data thắng khi cả hai cùng có
	acc.Steps[2] = map[string]interface{}{"visualBeats": []interface{}{"beat-moi"}}
	v, _ = acc.Read(LocVisualBeats)
	beats, _ = v.([]interface{})
	if beats[0] != "beat-moi" {
		t.Errorf("step2Data phải thắng step3Data, got %v", beats[0])
	}
}
