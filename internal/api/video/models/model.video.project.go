package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storia/internal/api/video/pipeline"
)

// VideoStatus định nghĩa lifecycle của project
const (
	VideoStatusDraft     = "draft"     // Đang dựng qua các step
	VideoStatusCompleted = "completed" // Đã qua step render
)

// CurrentSchemaVersion là schema version ghi cho document mới.
// v1: visualBeats nằm trong step3Data; v2: chuyển sang step2Data.
// Document cũ không migrate, đọc qua candidate-location list của pipeline.
const CurrentSchemaVersion = 2

// TotalStepSlots là số slot stepNData cố định trong document
const TotalStepSlots = 6

// VideoProject là root entity: một video đang được dựng qua wizard 6 step.
// Collection: video_projects
type VideoProject struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"` // ID của project, immutable

	Mode string `json:"mode" bson:"mode" index:"single:1"` // Pipeline mode: commerce | character-vlog
	Name string `json:"name,omitempty" bson:"name,omitempty"` // Tên hiển thị do user đặt

	// ===== STEP POINTER =====
	CurrentStep    int   `json:"currentStep" bson:"currentStep"`       // Con trỏ step (1-based, <= totalSteps+1)
	CompletedSteps []int `json:"completedSteps" bson:"completedSteps"` // Các step đã validate qua ít nhất một lần

	// ===== STEP DATA =====
	// Blob JSON per step, shape theo từng step và versioned informally
	Step1Data map[string]interface{} `json:"step1Data,omitempty" bson:"step1Data,omitempty"`
	Step2Data map[string]interface{} `json:"step2Data,omitempty" bson:"step2Data,omitempty"`
	Step3Data map[string]interface{} `json:"step3Data,omitempty" bson:"step3Data,omitempty"`
	Step4Data map[string]interface{} `json:"step4Data,omitempty" bson:"step4Data,omitempty"`
	Step5Data map[string]interface{} `json:"step5Data,omitempty" bson:"step5Data,omitempty"`
	Step6Data map[string]interface{} `json:"step6Data,omitempty" bson:"step6Data,omitempty"`

	// ===== PIPELINE STATE =====
	// Dirty snapshots + auto-invocation guards, persist cùng document
	PipelineState *pipeline.State `json:"pipelineState,omitempty" bson:"pipelineState,omitempty"`

	SchemaVersion int    `json:"schemaVersion" bson:"schemaVersion"`       // Version shape của step data
	Status        string `json:"status" bson:"status" index:"single:1"`    // draft | completed

	// ===== OWNERSHIP =====
	// Workspace sở hữu độc quyền; mọi quyền truy cập đi qua membership
	WorkspaceID primitive.ObjectID `json:"workspaceId" bson:"workspaceId" index:"single:1"`

	// ===== CONCURRENCY =====
	Revision int64 `json:"revision" bson:"revision"` // CAS token, tăng mỗi lần ghi

	// ===== TIMESTAMPS =====
	CreatedAt int64 `json:"createdAt" bson:"createdAt" index:"single:1"` // Thời gian tạo
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`                  // Thời gian cập nhật
}

// StepFieldName trả về tên field BSON của step slot (step1Data..step6Data)
func StepFieldName(step int) string {
	return fmt.Sprintf("step%dData", step)
}

// StepData đọc data của một step slot, không bao giờ trả nil
func (p *VideoProject) StepData(step int) map[string]interface{} {
	var data map[string]interface{}
	switch step {
	case 1:
		data = p.Step1Data
	case 2:
		data = p.Step2Data
	case 3:
		data = p.Step3Data
	case 4:
		data = p.Step4Data
	case 5:
		data = p.Step5Data
	case 6:
		data = p.Step6Data
	}
	if data == nil {
		return map[string]interface{}{}
	}
	return data
}

// SetStepData ghi data vào step slot
func (p *VideoProject) SetStepData(step int, data map[string]interface{}) {
	switch step {
	case 1:
		p.Step1Data = data
	case 2:
		p.Step2Data = data
	case 3:
		p.Step3Data = data
	case 4:
		p.Step4Data = data
	case 5:
		p.Step5Data = data
	case 6:
		p.Step6Data = data
	}
}

// ToPipelineProject dựng working copy cho transition controller.
// flags là feature flags của workspace sở hữu.
func (p *VideoProject) ToPipelineProject(flags map[string]bool) *pipeline.Project {
	steps := make(map[int]map[string]interface{}, TotalStepSlots)
	for n := 1; n <= TotalStepSlots; n++ {
		steps[n] = p.StepData(n)
	}

	state := p.PipelineState
	if state == nil {
		state = pipeline.NewState()
	}
	if flags == nil {
		flags = map[string]bool{}
	}

	return &pipeline.Project{
		ID:             p.ID.Hex(),
		Mode:           p.Mode,
		CurrentStep:    p.CurrentStep,
		CompletedSteps: append([]int{}, p.CompletedSteps...),
		Steps:          steps,
		State:          state,
		Flags:          flags,
		Status:         p.Status,
	}
}
