package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkspaceMemberRole định nghĩa các vai trò trong workspace
const (
	WorkspaceRoleOwner  = "owner"  // Chủ workspace
	WorkspaceRoleEditor = "editor" // Được tạo/sửa project
	WorkspaceRoleViewer = "viewer" // Chỉ xem
)

// WorkspaceMember là một user thuộc một workspace
// Collection: workspace_members
type WorkspaceMember struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"` // ID của membership

	// ===== REFERENCES =====
	WorkspaceID primitive.ObjectID `json:"workspaceId" bson:"workspaceId" index:"single:1"` // Workspace
	UserID      string             `json:"userId" bson:"userId" index:"single:1"`           // User (subject của JWT)

	Role string `json:"role" bson:"role"` // Vai trò: owner, editor, viewer

	// ===== TIMESTAMPS =====
	CreatedAt int64 `json:"createdAt" bson:"createdAt"` // Thời gian tạo
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"` // Thời gian cập nhật
}
