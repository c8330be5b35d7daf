package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"storia/internal/api/video/pipeline"
	"storia/internal/common"
	"storia/internal/logger"
)

// InvocationRecord là một attempt gọi agent, ghi vào audit log
type InvocationRecord struct {
	AgentID    string
	Attempt    int
	Outcome    string // "success" | "provider_error" | "schema_error"
	Error      string
	DurationMs int64
}

// AuditSink nhận record cho từng attempt. Implementation Mongo nằm ở
// tầng service; audit là best-effort, không được chặn invocation.
type AuditSink interface {
	Record(ctx context.Context, rec InvocationRecord)
}

// Invoker là Agent Invocation Adapter: tối đa maxRetries lần gọi với linear
// backoff, mỗi response phải qua schema validation; cạn retry trả
// ErrAgentInvocationFailed có kiểu, KHÔNG tự fallback (fallback là lựa chọn
// của caller, xem WithFallback).
type Invoker struct {
	providers  map[string]Provider
	maxRetries int
	backoff    time.Duration
	validate   *validator.Validate
	audit      AuditSink
	log        *logrus.Logger
}

// NewInvoker tạo adapter. providers map agent id sang provider phục vụ nó;
// audit có thể nil.
func NewInvoker(providers map[string]Provider, maxRetries int, backoff time.Duration, audit AuditSink) *Invoker {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Invoker{
		providers:  providers,
		maxRetries: maxRetries,
		backoff:    backoff,
		validate:   validator.New(),
		audit:      audit,
		log:        logger.GetAppLogger(),
	}
}

// Invoke gọi agent với retry + schema validation.
// Response parse được JSON nhưng sai schema cũng bị coi là fail và retry.
func (iv *Invoker) Invoke(ctx context.Context, agentID string, input map[string]interface{}) (map[string]interface{}, error) {
	provider, ok := iv.providers[agentID]
	if !ok {
		return nil, common.ErrAgentNotConfigured
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, common.NewError(common.ErrCodeAgentInvocation,
			"Không serialize được input cho agent", common.StatusInternalServerError, err.Error())
	}

	var lastErr error
	for attempt := 1; attempt <= iv.maxRetries; attempt++ {
		start := time.Now()

		body, err := provider.Call(ctx, agentID, payload)
		if err != nil {
			// Provider chưa cấu hình thì retry vô nghĩa
			if errors.Is(err, common.ErrAgentNotConfigured) {
				return nil, err
			}
			lastErr = err
			iv.record(ctx, agentID, attempt, "provider_error", err, start)
			if !iv.wait(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		output, err := validateResponse(iv.validate, agentID, body)
		if err != nil {
			lastErr = err
			iv.record(ctx, agentID, attempt, "schema_error", err, start)
			if !iv.wait(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		iv.record(ctx, agentID, attempt, "success", nil, start)
		return output, nil
	}

	iv.log.WithFields(logrus.Fields{
		"agentId":  agentID,
		"attempts": iv.maxRetries,
		"lastErr":  lastErr,
	}).Error("Agent cạn retry mà chưa có response hợp lệ")

	return nil, common.ErrAgentInvocationFailed
}

// wait ngủ linear backoff (backoff * attempt) trừ khi đã là attempt cuối.
// Trả false khi context bị hủy.
func (iv *Invoker) wait(ctx context.Context, attempt int) bool {
	if attempt >= iv.maxRetries || iv.backoff <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(iv.backoff * time.Duration(attempt)):
		return true
	}
}

func (iv *Invoker) record(ctx context.Context, agentID string, attempt int, outcome string, err error, start time.Time) {
	if iv.audit == nil {
		return
	}
	rec := InvocationRecord{
		AgentID:    agentID,
		Attempt:    attempt,
		Outcome:    outcome,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	iv.audit.Record(ctx, rec)
}

// Các pacing profile dùng cho fallback deterministic
const (
	PacingFastCut  = "FAST_CUT"
	PacingMedium   = "MEDIUM_CUT"
	PacingSlowBurn = "SLOW_BURN"
)

// PacingProfileForDuration chọn pacing profile theo ngưỡng duration (giây)
func PacingProfileForDuration(duration int64) string {
	switch {
	case duration <= 15:
		return PacingFastCut
	case duration <= 36:
		return PacingMedium
	default:
		return PacingSlowBurn
	}
}

// Fallback sinh output mặc định theo rule thay cho agent, để user đi tiếp
// khi AI không khả dụng. Chỉ narrative và storyboard có fallback; voiceover
// cần audio thật nên không fallback được.
func Fallback(agentID string, input map[string]interface{}) (map[string]interface{}, error) {
	duration := durationFromInput(input)
	pacing := PacingProfileForDuration(duration)

	switch agentID {
	case pipeline.AgentNarrative:
		beatCount := int(duration / 12)
		if beatCount < 1 {
			beatCount = 1
		}
		beats := make([]interface{}, 0, beatCount)
		for i := 0; i < beatCount; i++ {
			beats = append(beats, map[string]interface{}{
				"description": "Đoạn kể tự động theo thứ tự sản phẩm",
				"duration":    float64(12),
			})
		}
		return map[string]interface{}{
			"visualBeats":   beats,
			"pacingProfile": pacing,
		}, nil

	case pipeline.AgentStoryboard:
		beats := beatsFromInput(input)
		if len(beats) == 0 {
			beats = []interface{}{map[string]interface{}{"description": "Cảnh mở đầu"}}
		}
		scenes := make([]interface{}, 0, len(beats))
		for i := range beats {
			scenes = append(scenes, map[string]interface{}{
				"id":          fmt.Sprintf("scene-%d", i+1),
				"description": "Cảnh dựng tự động từ beat",
				"pacing":      pacing,
			})
		}
		return map[string]interface{}{"scenes": scenes}, nil

	default:
		return nil, common.ErrAgentInvocationFailed
	}
}

// durationFromInput đọc duration đã chọn ở step setup từ agent input
func durationFromInput(input map[string]interface{}) int64 {
	steps, _ := input["steps"].(map[string]interface{})
	setup, _ := steps[pipeline.StepSetup].(map[string]interface{})
	switch d := setup["duration"].(type) {
	case float64:
		return int64(d)
	case int64:
		return d
	case int:
		return int64(d)
	default:
		return 0
	}
}

// beatsFromInput đọc visualBeats từ agent input (vị trí v2 trước, v1 sau)
func beatsFromInput(input map[string]interface{}) []interface{} {
	steps, _ := input["steps"].(map[string]interface{})
	for _, stepID := range []string{pipeline.StepScript, pipeline.StepStoryboard} {
		data, _ := steps[stepID].(map[string]interface{})
		if beats, ok := data["visualBeats"].([]interface{}); ok && len(beats) > 0 {
			return beats
		}
	}
	return nil
}

// FallbackInvoker bọc một invoker: cạn retry thì trả fallback deterministic
// thay vì lỗi. Chỉ dùng khi request của user yêu cầu tường minh.
type FallbackInvoker struct {
	inner pipeline.AgentInvoker
	log   *logrus.Logger
}

// WithFallback bọc invoker với fallback theo yêu cầu của caller
func WithFallback(inner pipeline.AgentInvoker) *FallbackInvoker {
	return &FallbackInvoker{inner: inner, log: logger.GetAppLogger()}
}

// Invoke thử inner trước, hết cách mới fallback
func (f *FallbackInvoker) Invoke(ctx context.Context, agentID string, input map[string]interface{}) (map[string]interface{}, error) {
	output, err := f.inner.Invoke(ctx, agentID, input)
	if err == nil {
		return output, nil
	}
	if !errors.Is(err, common.ErrAgentInvocationFailed) {
		return nil, err
	}

	f.log.WithField("agentId", agentID).Warn("Agent thất bại, dùng output fallback theo rule")
	return Fallback(agentID, input)
}
