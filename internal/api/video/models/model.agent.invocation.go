package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AgentInvocationOutcome các kết quả của một attempt gọi agent
const (
	AgentOutcomeSuccess       = "success"
	AgentOutcomeProviderError = "provider_error"
	AgentOutcomeSchemaError   = "schema_error"
)

// AgentInvocation là audit record cho MỖI attempt gọi AI agent
// Collection: agent_invocations
type AgentInvocation struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"` // ID của record

	// ===== REFERENCES =====
	ProjectID primitive.ObjectID `json:"projectId" bson:"projectId" index:"single:1"` // Project mà agent phục vụ
	AgentID   string             `json:"agentId" bson:"agentId" index:"single:1"`     // narrative | storyboard | voiceover

	// ===== ATTEMPT =====
	Attempt    int    `json:"attempt" bson:"attempt"`                     // Số thứ tự attempt (1-based)
	Outcome    string `json:"outcome" bson:"outcome" index:"single:1"`    // success | provider_error | schema_error
	Error      string `json:"error,omitempty" bson:"error,omitempty"`     // Thông điệp lỗi nếu có
	DurationMs int64  `json:"durationMs" bson:"durationMs"`               // Thời gian attempt

	// ===== TIMESTAMPS =====
	CreatedAt int64 `json:"createdAt" bson:"createdAt" index:"single:1"` // Thời gian tạo
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`                  // Thời gian cập nhật
}
