package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workspace là đơn vị sở hữu duy nhất của video project.
// Mọi quyền truy cập project đi qua membership của workspace, không có
// kiểm tra ownership trực tiếp theo user.
// Collection: workspaces
type Workspace struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"` // ID của workspace

	Name string `json:"name" bson:"name"` // Tên workspace

	// ===== FEATURE FLAGS =====
	// Flags điều khiển pipeline (ví dụ voiceoverDisabled: bỏ qua step audio)
	FeatureFlags map[string]bool `json:"featureFlags,omitempty" bson:"featureFlags,omitempty"`

	// ===== OWNER =====
	OwnerUserID string `json:"ownerUserId" bson:"ownerUserId" index:"single:1"` // User tạo workspace

	// ===== TIMESTAMPS =====
	CreatedAt int64 `json:"createdAt" bson:"createdAt" index:"single:1"` // Thời gian tạo
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`                  // Thời gian cập nhật
}
