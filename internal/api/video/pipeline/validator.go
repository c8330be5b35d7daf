package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"storia/internal/common"
)

// Accumulated là toàn bộ dữ liệu tích lũy của project tại thời điểm validate:
// step data đã persist với các field value đang sống (chưa save) merge đè lên.
// Validator chỉ đọc từ đây, không I/O.
type Accumulated struct {
	Mode  string
	Steps map[int]map[string]interface{} // stepNumber -> step data
}

// Read đọc một logical field theo danh sách vị trí ứng viên, first-match-wins.
// Đây là chiến lược đọc backward-compatible cho dữ liệu đã di chuyển slot
// giữa các schema version.
func (a Accumulated) Read(candidates []Location) (interface{}, bool) {
	for _, loc := range candidates {
		data, ok := a.Steps[loc.Step]
		if !ok {
			continue
		}
		if v, ok := data[loc.Key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// ReadString đọc field dạng chuỗi từ một step cụ thể
func (a Accumulated) ReadString(step int, key string) string {
	data, ok := a.Steps[step]
	if !ok {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

// ReadSlice đọc field dạng mảng theo vị trí ứng viên
func (a Accumulated) ReadSlice(candidates []Location) []interface{} {
	v, ok := a.Read(candidates)
	if !ok {
		return nil
	}
	s, _ := v.([]interface{})
	return s
}

// toInt64 ép các kiểu số mà JSON/BSON decode có thể trả về
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// allowedDurations là enum đóng các duration hợp lệ (giây), override được qua pipelines.yaml
var (
	allowedDurations   = map[int64]bool{12: true, 24: true, 36: true, 48: true}
	allowedDurationsMu sync.RWMutex
)

// SetAllowedDurations thay enum duration (dùng bởi LoadOverrides)
func SetAllowedDurations(durations []int64) {
	allowedDurationsMu.Lock()
	defer allowedDurationsMu.Unlock()
	allowedDurations = make(map[int64]bool, len(durations))
	for _, d := range durations {
		allowedDurations[d] = true
	}
}

// IsAllowedDuration kiểm tra duration thuộc enum đóng
func IsAllowedDuration(d int64) bool {
	allowedDurationsMu.RLock()
	defer allowedDurationsMu.RUnlock()
	return allowedDurations[d]
}

// validationError tạo ValidationError chuẩn cho một step
func validationError(stepID, msg string) error {
	return common.NewError(
		common.ErrCodeValidationStep,
		fmt.Sprintf("Step %q chưa đủ điều kiện: %s", stepID, msg),
		common.StatusBadRequest,
		nil,
	)
}

// validateSetup: cần motion instruction không rỗng, target audience đã chọn,
// duration thuộc enum đóng; mode character-vlog cần thêm characterName.
func validateSetup(mode string, acc Accumulated) error {
	if strings.TrimSpace(acc.ReadString(1, "customMotionInstructions")) == "" {
		return validationError(StepSetup, "thiếu customMotionInstructions")
	}
	if acc.ReadString(1, "targetAudience") == "" {
		return validationError(StepSetup, "chưa chọn targetAudience")
	}

	rawDuration, ok := acc.Steps[1]["duration"]
	if !ok {
		return validationError(StepSetup, "chưa chọn duration")
	}
	duration, ok := toInt64(rawDuration)
	if !ok || !IsAllowedDuration(duration) {
		return validationError(StepSetup, fmt.Sprintf("duration %v không thuộc các giá trị cho phép", rawDuration))
	}

	if mode == ModeCharacterVlog && strings.TrimSpace(acc.ReadString(1, "characterName")) == "" {
		return validationError(StepSetup, "mode character-vlog cần characterName")
	}
	return nil
}

// validateScript: creative spark tối thiểu 10 ký tự VÀ đã có visual beats
func validateScript(acc Accumulated) error {
	if len(strings.TrimSpace(acc.ReadString(2, "creativeSpark"))) < 10 {
		return validationError(StepScript, "creativeSpark cần tối thiểu 10 ký tự")
	}
	if len(acc.ReadSlice(LocVisualBeats)) == 0 {
		return validationError(StepScript, "chưa có visual beats")
	}
	return nil
}

// validateStoryboard: cần danh sách scenes không rỗng
func validateStoryboard(acc Accumulated) error {
	if len(acc.ReadSlice(LocScenes)) == 0 {
		return validationError(StepStoryboard, "chưa có scenes")
	}
	return nil
}

// validateVisuals: mọi shot phải có imageUrl
func validateVisuals(acc Accumulated) error {
	shots, _ := acc.Steps[4]["shots"].([]interface{})
	if len(shots) == 0 {
		return validationError(StepVisuals, "chưa có shots")
	}
	for i, raw := range shots {
		shot, ok := raw.(map[string]interface{})
		if !ok {
			return validationError(StepVisuals, fmt.Sprintf("shot tại vị trí %d sai định dạng", i))
		}
		if url, _ := shot["imageUrl"].(string); url == "" {
			return validationError(StepVisuals, fmt.Sprintf("shot tại vị trí %d chưa có imageUrl", i))
		}
	}
	return nil
}

// validateAudio: cần voiceoverUrl (step optional, có thể bị skip qua feature flag)
func validateAudio(acc Accumulated) error {
	v, ok := acc.Read(LocVoiceoverURL)
	if !ok {
		return validationError(StepAudio, "chưa có voiceoverUrl")
	}
	if url, _ := v.(string); url == "" {
		return validationError(StepAudio, "chưa có voiceoverUrl")
	}
	return nil
}

// validateRender: các điều kiện dựng edit đã được gate ở các step trước;
// step render chỉ cần storyboard còn nguyên vẹn.
func validateRender(acc Accumulated) error {
	if len(acc.ReadSlice(LocScenes)) == 0 {
		return validationError(StepRender, "storyboard trống, không dựng được edit")
	}
	return nil
}

// CanAdvance là dạng predicate boolean của validator (spec §4.2),
// dùng bởi UI layer để disable nút Continue một cách chủ động.
func CanAdvance(p *Pipeline, stepID string, acc Accumulated) bool {
	def, ok := p.StepByID(stepID)
	if !ok {
		return false
	}
	return def.Validate(acc) == nil
}
