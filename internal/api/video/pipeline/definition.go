package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Các pipeline mode được hỗ trợ
const (
	ModeCommerce      = "commerce"
	ModeCharacterVlog = "character-vlog"
)

// Các step id của wizard (cả hai mode dùng chung thứ tự 6 step)
const (
	StepSetup      = "setup"
	StepScript     = "script"
	StepStoryboard = "storyboard"
	StepVisuals    = "visuals"
	StepAudio      = "audio"
	StepRender     = "render"
)

// Các agent id gắn với step
const (
	AgentNarrative  = "narrative"
	AgentStoryboard = "storyboard"
	AgentVoiceover  = "voiceover"
)

// Location là một vị trí ứng viên của một logical field trong step data.
// Dữ liệu từng di chuyển giữa các step slot qua các schema version
// (ví dụ visualBeats từ step3Data sang step2Data), nên mỗi logical field
// có danh sách vị trí ứng viên đọc theo thứ tự, first-match-wins.
type Location struct {
	Step int    // Step slot (1-based)
	Key  string // Key trong step data
}

// Danh sách vị trí ứng viên cho các logical field có lịch sử di chuyển slot
var (
	// visualBeats: v2 lưu ở step2Data, v1 lưu ở step3Data
	LocVisualBeats = []Location{{Step: 2, Key: "visualBeats"}, {Step: 3, Key: "visualBeats"}}

	LocScenes       = []Location{{Step: 3, Key: "scenes"}}
	LocVoiceoverURL = []Location{{Step: 5, Key: "voiceoverUrl"}}
	LocRenderID     = []Location{{Step: 6, Key: "renderId"}}
)

// StepDefinition là cấu hình một step của wizard (không persist per project)
type StepDefinition struct {
	ID     string // Step id ("setup", "script", ...)
	Number int    // Vị trí trong pipeline (1-based)

	// Validate là predicate thuần: dữ liệu tích lũy có đủ để advance không.
	// Không side effect, không I/O; được gọi lại trên mỗi lần field thay đổi.
	Validate func(acc Accumulated) error

	// AgentID là agent gắn với step (rỗng = step không cần generation)
	AgentID string

	// Artifact là vị trí ứng viên của artifact do agent sinh ra.
	// Artifact đã tồn tại => bỏ qua phase Invoking (re-entry idempotent).
	Artifact []Location

	// AutoInvoke: step tự trigger agent đúng một lần khi user vào step
	// lần đầu mà chưa có artifact (guard bằng AutoInvocationState).
	AutoInvoke bool

	// DirtyFields là các field mà thay đổi sau khi step completed sẽ đánh dấu step dirty
	DirtyFields []string

	// Defaults là giá trị mặc định từng field, dùng khi cascade reset
	Defaults map[string]interface{}

	// Optional: step có thể bị skip khi workspace flag tương ứng bật
	Optional bool
	FlagKey  string // Feature flag của workspace điều khiển việc skip
}

// Pipeline là danh sách step có thứ tự cho một mode
type Pipeline struct {
	Mode  string
	Steps []StepDefinition
}

// TotalSteps trả về số step của pipeline
func (p *Pipeline) TotalSteps() int {
	return len(p.Steps)
}

// StepByNumber trả về định nghĩa step theo số thứ tự (1-based)
func (p *Pipeline) StepByNumber(n int) (StepDefinition, bool) {
	if n < 1 || n > len(p.Steps) {
		return StepDefinition{}, false
	}
	return p.Steps[n-1], true
}

// StepByID trả về định nghĩa step theo id
func (p *Pipeline) StepByID(id string) (StepDefinition, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return StepDefinition{}, false
}

// NextEnabledStep trả về step tiếp theo sau from, bỏ qua mọi optional step
// bị disable bởi feature flag. Quy tắc (đã chốt từ open question): quét tiến
// từ from+1 và dừng ở step enabled đầu tiên, bất kể bao nhiêu optional step
// bị disable liên tiếp. Trả về TotalSteps+1 khi đã qua step cuối.
func (p *Pipeline) NextEnabledStep(from int, flags map[string]bool) int {
	next := from + 1
	for next <= len(p.Steps) {
		def := p.Steps[next-1]
		if def.Optional && def.FlagKey != "" && flags[def.FlagKey] {
			next++
			continue
		}
		return next
	}
	return len(p.Steps) + 1
}

// buildSteps dựng danh sách step cho một mode
func buildSteps(mode string) []StepDefinition {
	return []StepDefinition{
		{
			ID:     StepSetup,
			Number: 1,
			Validate: func(acc Accumulated) error {
				return validateSetup(mode, acc)
			},
			DirtyFields: []string{"customMotionInstructions", "targetAudience", "duration", "characterName"},
			Defaults: map[string]interface{}{
				"customMotionInstructions": "",
				"targetAudience":           "",
				"duration":                 int64(0),
				"characterName":            "",
			},
		},
		{
			ID:          StepScript,
			Number:      2,
			Validate:    validateScript,
			AgentID:     AgentNarrative,
			Artifact:    LocVisualBeats,
			DirtyFields: []string{"creativeSpark"},
			Defaults: map[string]interface{}{
				"creativeSpark": "",
			},
		},
		{
			ID:          StepStoryboard,
			Number:      3,
			Validate:    validateStoryboard,
			AgentID:     AgentStoryboard,
			Artifact:    LocScenes,
			AutoInvoke:  true,
			DirtyFields: []string{"scenes"},
			Defaults:    map[string]interface{}{},
		},
		{
			ID:          StepVisuals,
			Number:      4,
			Validate:    validateVisuals,
			DirtyFields: []string{"shots"},
			Defaults:    map[string]interface{}{},
		},
		{
			ID:          StepAudio,
			Number:      5,
			Validate:    validateAudio,
			AgentID:     AgentVoiceover,
			Artifact:    LocVoiceoverURL,
			DirtyFields: []string{"voiceStyle"},
			Defaults: map[string]interface{}{
				"voiceStyle": "narration",
			},
			Optional: true,
			FlagKey:  "voiceoverDisabled",
		},
		{
			ID:          StepRender,
			Number:      6,
			Validate:    validateRender,
			DirtyFields: []string{},
			Defaults:    map[string]interface{}{},
		},
	}
}

var pipelines = map[string]*Pipeline{
	ModeCommerce:      {Mode: ModeCommerce, Steps: buildSteps(ModeCommerce)},
	ModeCharacterVlog: {Mode: ModeCharacterVlog, Steps: buildSteps(ModeCharacterVlog)},
}

// ForMode trả về pipeline definition theo mode của project
func ForMode(mode string) (*Pipeline, error) {
	p, ok := pipelines[mode]
	if !ok {
		return nil, fmt.Errorf("pipeline mode không được hỗ trợ: %q", mode)
	}
	return p, nil
}

// overridesFile là cấu trúc yaml override cho pipeline definitions.
// Chỉ các knob vận hành được override, không đổi được thứ tự step.
type overridesFile struct {
	Durations []int64 `yaml:"durations"` // Enum duration thay thế
	Optional  map[string]struct {
		FlagKey string `yaml:"flagKey"`
	} `yaml:"optional"` // Đổi flag key cho các optional step
}

// LoadOverrides đọc file pipelines.yaml (nếu có) và áp override lên definitions.
// File không tồn tại không phải lỗi: dùng defaults built-in.
func LoadOverrides(path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("không đọc được pipelines config %s: %w", path, err)
	}

	var f overridesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("pipelines config %s không phải yaml hợp lệ: %w", path, err)
	}

	if len(f.Durations) > 0 {
		SetAllowedDurations(f.Durations)
	}
	for stepID, o := range f.Optional {
		for _, p := range pipelines {
			for i := range p.Steps {
				if p.Steps[i].ID == stepID && p.Steps[i].Optional && o.FlagKey != "" {
					p.Steps[i].FlagKey = o.FlagKey
				}
			}
		}
	}
	return nil
}
