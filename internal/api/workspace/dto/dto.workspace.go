// Package wsdto chứa các DTO cho workspace API
package wsdto

// WorkspaceCreateInput là input tạo workspace mới
type WorkspaceCreateInput struct {
	Name string `json:"name" validate:"required,min=1,max=120"` // Tên workspace

	// FeatureFlags bật/tắt optional step của pipeline (ví dụ voiceoverDisabled)
	FeatureFlags map[string]bool `json:"featureFlags,omitempty"`
}

// WorkspaceMemberAddInput là input thêm member vào workspace
type WorkspaceMemberAddInput struct {
	UserID string `json:"userId" validate:"required"`                          // User được thêm
	Role   string `json:"role" validate:"required,oneof=owner editor viewer"` // Vai trò trong workspace
}
