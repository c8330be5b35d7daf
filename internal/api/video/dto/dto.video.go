package videodto

// VideoCreateInput dữ liệu đầu vào khi tạo video project
type VideoCreateInput struct {
	Mode string `json:"mode" validate:"required,video_mode"`
	Name string `json:"name,omitempty"`
}

// StepPatchInput là partial update cho step data (deep-merge, null = tombstone).
// Data giữ nguyên map thô vì tombstone semantics phân biệt key vắng mặt
// với key mang null - decode qua struct typed sẽ mất thông tin đó.
type StepPatchInput struct {
	Data map[string]interface{} `json:"data" validate:"required"`
}

// StepContinueInput dữ liệu đầu vào cho thao tác Continue của một step
type StepContinueInput struct {
	// ConfirmReset: user đã đồng ý với confirm prompt "các step sau sẽ bị
	// xóa"; controller được phép cascade reset từ step dirty
	ConfirmReset bool `json:"confirmReset,omitempty"`

	// AllowFallback: khi agent cạn retry, dùng output fallback theo rule
	// thay vì trả lỗi (chỉ khi user yêu cầu tường minh)
	AllowFallback bool `json:"allowFallback,omitempty"`
}

// VideoUpdateInput dữ liệu đầu vào cho generic update của project.
// Đường cascade reset: set ResetFromStep để xóa step N..totalSteps.
type VideoUpdateInput struct {
	ResetFromStep *int   `json:"resetFromStep,omitempty" validate:"omitempty,min=1,max=6"`
	Name          string `json:"name,omitempty"`
}

// StepContinueResult trả về cho client sau một lần Continue
type StepContinueResult struct {
	// RequiresConfirmation: có step dirty đã completed, cần user xác nhận
	// cascade reset trước khi đi tiếp
	RequiresConfirmation bool   `json:"requiresConfirmation"`
	DirtyStepID          string `json:"dirtyStepId,omitempty"`
	DirtyStepNumber      int    `json:"dirtyStepNumber,omitempty"`

	CurrentStep  int  `json:"currentStep"`
	AgentInvoked bool `json:"agentInvoked"`
	Completed    bool `json:"completed"` // Project đã qua step cuối

	Project interface{} `json:"project,omitempty"` // Snapshot project sau thao tác
}

// AssetUploadResult trả về sau khi upload reference image
type AssetUploadResult struct {
	StagingKey string `json:"stagingKey"`
	URL        string `json:"url"`
	FileName   string `json:"fileName"`
}
