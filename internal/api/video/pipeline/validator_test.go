package pipeline

import (
	"errors"
	"testing"

	"storia/internal/common"
)

func accOf(mode string, steps map[int]map[string]interface{}) Accumulated {
	return Accumulated{Mode: mode, Steps: steps}
}

func TestValidateSetupCommerce(t *testing.T) {
	acc := accOf(ModeCommerce, map[int]map[string]interface{}{
		1: {
			"customMotionInstructions": "orbit chậm quanh sản phẩm",
			"targetAudience":           "gen-z",
			"duration":                 float64(24),
		},
	})
	if err := validateSetup(ModeCommerce, acc); err != nil {
		t.Errorf("Setup hợp lệ nhưng bị từ chối: %v", err)
	}

	// Duration ngoài enum đóng phải fail
	acc.Steps[1]["duration"] = float64(25)
	if err := validateSetup(ModeCommerce, acc); err == nil {
		t.Error("Duration 25 không thuộc enum nhưng vẫn pass")
	}

	// Motion instruction toàn whitespace phải fail
	acc.Steps[1]["duration"] = float64(24)
	acc.Steps[1]["customMotionInstructions"] = "   "
	if err := validateSetup(ModeCommerce, acc); err == nil {
		t.Error("customMotionInstructions toàn whitespace nhưng vẫn pass")
	}
}

func TestValidateSetupCharacterVlogCanCharacterName(t *testing.T) {
	steps := map[int]map[string]interface{}{
		1: {
			"customMotionInstructions": "máy quay cầm tay",
			"targetAudience":           "millennial",
			"duration":                 int64(12),
		},
	}
	if err := validateSetup(ModeCharacterVlog, accOf(ModeCharacterVlog, steps)); err == nil {
		t.Error("Mode character-vlog thiếu characterName nhưng vẫn pass")
	}

	steps[1]["characterName"] = "Linh"
	if err := validateSetup(ModeCharacterVlog, accOf(ModeCharacterVlog, steps)); err != nil {
		t.Errorf("Có characterName nhưng vẫn bị từ chối: %v", err)
	}

	// Cùng dữ liệu, mode commerce không cần characterName
	delete(steps[1], "characterName")
	if err := validateSetup(ModeCommerce, accOf(ModeCommerce, steps)); err != nil {
		t.Errorf("Mode commerce không cần characterName nhưng bị từ chối: %v", err)
	}
}

func TestValidateSetupThieuDuration(t *testing.T) {
	acc := accOf(ModeCommerce, map[int]map[string]interface{}{
		1: {
			"customMotionInstructions": "orbit shot",
			"targetAudience":           "gen-z",
		},
	})
	if err := validateSetup(ModeCommerce, acc); err == nil {
		t.Error("Thiếu duration phải fail validate")
	}

	acc.Steps[1]["duration"] = float64(13)
	if err := validateSetup(ModeCommerce, acc); err == nil {
		t.Error("Duration ngoài enum phải fail validate")
	}

	acc.Steps[1]["duration"] = float64(12)
	if err := validateSetup(ModeCommerce, acc); err != nil {
		t.Errorf("Setup đầy đủ phải pass, got %v", err)
	}
}

func TestValidateScriptCanCaSparkVaBeats(t *testing.T) {
	acc := accOf(ModeCommerce, map[int]map[string]interface{}{
		2: {"creativeSpark": "một buổi sáng mùa thu ở Hà Nội"},
	})
	if err := validateScript(acc); err == nil {
		t.Error("Chưa có visual beats nhưng script vẫn pass")
	}

	acc.Steps[2]["visualBeats"] = []interface{}{
		map[string]interface{}{"description": "mở cảnh phố cổ"},
	}
	if err := validateScript(acc); err != nil {
		t.Errorf("Script đủ điều kiện nhưng bị từ chối: %v", err)
	}

	acc.Steps[2]["creativeSpark"] = "ngắn"
	if err := validateScript(acc); err == nil {
		t.Error("creativeSpark dưới 10 ký tự nhưng vẫn pass")
	}
}

func TestVisualBeatsDocTheoViTriUngVien(t *testing.T) {
	// Document schema v1: visualBeats nằm ở step3Data, đọc fallback phải thấy
	acc := accOf(ModeCommerce, map[int]map[string]interface{}{
		2: {"creativeSpark": "câu chuyện đủ dài để qua ngưỡng"},
		3: {"visualBeats": []interface{}{map[string]interface{}{"description": "beat cũ"}}},
	})
	if err := validateScript(acc); err != nil {
		t.Errorf("visualBeats ở vị trí fallback (v1) nhưng không được đọc: %v", err)
	}

	// v2 đè lên v1: vị trí đầu tiên thắng
	acc.Steps[2]["visualBeats"] = []interface{}{map[string]interface{}{"description": "beat mới"}}
	beats := acc.ReadSlice(LocVisualBeats)
	if len(beats) != 1 {
		t.Fatalf("Đọc visualBeats trả về %d phần tử, muốn 1", len(beats))
	}
	beat := beats[0].(map[string]interface{})
	if beat["description"] != "beat mới" {
		t.Errorf("First-match-wins sai: đọc được %v", beat["description"])
	}
}

func TestValidateVisualsMoiShotCanImageUrl(t *testing.T) {
	acc := accOf(ModeCommerce, map[int]map[string]interface{}{
		4: {"shots": []interface{}{
			map[string]interface{}{"id": "shot-1", "imageUrl": "https://cdn.example.com/a.png"},
			map[string]interface{}{"id": "shot-2"},
		}},
	})
	if err := validateVisuals(acc); err == nil {
		t.Error("Shot thiếu imageUrl nhưng visuals vẫn pass")
	}

	shots := acc.Steps[4]["shots"].([]interface{})
	shots[1].(map[string]interface{})["imageUrl"] = "https://cdn.example.com/b.png"
	if err := validateVisuals(acc); err != nil {
		t.Errorf("Mọi shot có imageUrl nhưng bị từ chối: %v", err)
	}
}

func TestValidationErrorLaTypedError(t *testing.T) {
	err := validateStoryboard(accOf(ModeCommerce, map[int]map[string]interface{}{}))
	if err == nil {
		t.Fatal("Storyboard trống nhưng không có lỗi")
	}
	var customErr *common.Error
	if !errors.As(err, &customErr) {
		t.Fatalf("Lỗi validation không phải common.Error: %T", err)
	}
	if customErr.Code.Code != common.ErrCodeValidationStep.Code {
		t.Errorf("Mã lỗi = %s, muốn %s", customErr.Code.Code, common.ErrCodeValidationStep.Code)
	}
	if customErr.StatusCode != common.StatusBadRequest {
		t.Errorf("Status = %d, muốn 400", customErr.StatusCode)
	}
}

func TestSetAllowedDurationsOverride(t *testing.T) {
	defer SetAllowedDurations([]int64{12, 24, 36, 48})

	SetAllowedDurations([]int64{10, 20})
	if !IsAllowedDuration(10) || IsAllowedDuration(12) {
		t.Error("Override enum duration không có hiệu lực")
	}
}

func TestValidatorThuanKhiet(t *testing.T) {
	// Validator là predicate thuần: hai lần gọi cùng input cho cùng output,
	// không đụng đến agent hay store
	agent := &fakeAgent{}
	store := newFakeStore()
	p, _ := ForMode(ModeCommerce)
	_ = NewController(p, store, agent)

	acc := accOf(ModeCommerce, map[int]map[string]interface{}{
		1: {
			"customMotionInstructions": "orbit shot",
			"targetAudience":           "gen-z",
			"duration":                 float64(12),
		},
	})

	first := CanAdvance(p, StepSetup, acc)
	second := CanAdvance(p, StepSetup, acc)
	if first != second {
		t.Errorf("CanAdvance không ổn định: lần 1 %v, lần 2 %v", first, second)
	}
	if !first {
		t.Error("Setup đầy đủ phải advance được")
	}
	if agent.calls != 0 {
		t.Errorf("Validator không được gọi agent, calls = %d", agent.calls)
	}
	if store.patchCalls != 0 || len(store.advances) != 0 || len(store.resets) != 0 {
		t.Error("Validator không được đụng đến store")
	}
}

func TestCanAdvanceDangBoolean(t *testing.T) {
	pl, err := ForMode(ModeCommerce)
	if err != nil {
		t.Fatalf("ForMode commerce lỗi: %v", err)
	}

	acc := accOf(ModeCommerce, map[int]map[string]interface{}{1: {}})
	if CanAdvance(pl, StepSetup, acc) {
		t.Error("Setup trống nhưng CanAdvance = true")
	}

	acc.Steps[1] = map[string]interface{}{
		"customMotionInstructions": "cận cảnh chi tiết vải",
		"targetAudience":           "gen-z",
		"duration":                 int64(48),
	}
	if !CanAdvance(pl, StepSetup, acc) {
		t.Error("Setup đầy đủ nhưng CanAdvance = false")
	}
}
