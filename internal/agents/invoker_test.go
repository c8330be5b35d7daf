package agents

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storia/internal/api/video/pipeline"
	"storia/internal/common"
)

// fakeProvider trả lần lượt các body đã xếp sẵn, đếm số lần gọi
type fakeProvider struct {
	bodies [][]byte
	errs   []error
	calls  int
}

func (f *fakeProvider) Call(_ context.Context, _ string, _ []byte) ([]byte, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.bodies) {
		return f.bodies[i], nil
	}
	return f.bodies[len(f.bodies)-1], nil
}

type memorySink struct {
	mu   sync.Mutex
	recs []InvocationRecord
}

func (m *memorySink) Record(_ context.Context, rec InvocationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
}

func narrativeInput(duration float64) map[string]interface{} {
	return map[string]interface{}{
		"mode": pipeline.ModeCommerce,
		"step": pipeline.StepScript,
		"steps": map[string]interface{}{
			pipeline.StepSetup: map[string]interface{}{"duration": duration},
		},
	}
}

func TestInvokeThanhCongLanDau(t *testing.T) {
	provider := &fakeProvider{bodies: [][]byte{
		[]byte(`{"visualBeats":[{"description":"mở hộp sản phẩm","duration":12}]}`),
	}}
	sink := &memorySink{}
	iv := NewInvoker(map[string]Provider{pipeline.AgentNarrative: provider}, 2, 0, sink)

	out, err := iv.Invoke(context.Background(), pipeline.AgentNarrative, narrativeInput(12))
	if err != nil {
		t.Fatalf("Invoke lỗi: %v", err)
	}
	beats, _ := out["visualBeats"].([]interface{})
	if len(beats) != 1 {
		t.Errorf("Output phải có 1 beat, got %v", out)
	}
	if provider.calls != 1 {
		t.Errorf("Thành công lần đầu thì không retry, calls = %d", provider.calls)
	}
	if len(sink.recs) != 1 || sink.recs[0].Outcome != "success" {
		t.Errorf("Audit phải ghi 1 record success, got %v", sink.recs)
	}
}

// maxRetries=2, provider luôn trả JSON hỏng: đúng 2 attempt rồi ErrAgentInvocationFailed
func TestHetRetryTraLoiTyped(t *testing.T) {
	provider := &fakeProvider{bodies: [][]byte{
		[]byte(`không phải json`),
		[]byte(`không phải json`),
	}}
	sink := &memorySink{}
	iv := NewInvoker(map[string]Provider{pipeline.AgentNarrative: provider}, 2, 0, sink)

	_, err := iv.Invoke(context.Background(), pipeline.AgentNarrative, narrativeInput(12))
	if !errors.Is(err, common.ErrAgentInvocationFailed) {
		t.Fatalf("Phải trả ErrAgentInvocationFailed, got %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("maxRetries=2 thì đúng 2 attempt, calls = %d", provider.calls)
	}
	if len(sink.recs) != 2 {
		t.Errorf("Audit phải ghi 2 record, got %d", len(sink.recs))
	}
}

// JSON parse được nhưng sai schema cũng là fail và được retry
func TestSaiSchemaVanRetry(t *testing.T) {
	provider := &fakeProvider{bodies: [][]byte{
		[]byte(`{"visualBeats":[]}`), // parse được nhưng min=1 fail
		[]byte(`{"visualBeats":[{"description":"cận cảnh chất liệu"}]}`),
	}}
	iv := NewInvoker(map[string]Provider{pipeline.AgentNarrative: provider}, 3, 0, nil)

	out, err := iv.Invoke(context.Background(), pipeline.AgentNarrative, narrativeInput(12))
	if err != nil {
		t.Fatalf("Attempt 2 hợp lệ phải thành công: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("Schema fail phải retry, calls = %d", provider.calls)
	}
	if out == nil {
		t.Fatal("Output không được nil khi thành công")
	}
}

func TestProviderChuaCauHinhKhongRetry(t *testing.T) {
	p := NewHTTPProvider("llm", "", "")
	iv := NewInvoker(map[string]Provider{pipeline.AgentNarrative: p}, 3, 0, nil)

	_, err := iv.Invoke(context.Background(), pipeline.AgentNarrative, narrativeInput(12))
	if !errors.Is(err, common.ErrAgentNotConfigured) {
		t.Fatalf("Provider không cấu hình phải trả ErrAgentNotConfigured, got %v", err)
	}
}

// Retry-then-fallback: hết retry, caller yêu cầu fallback thì nhận output
// deterministic theo ngưỡng duration
func TestFallbackSauKhiHetRetry(t *testing.T) {
	provider := &fakeProvider{bodies: [][]byte{
		[]byte(`hỏng`),
		[]byte(`hỏng`),
	}}
	iv := NewInvoker(map[string]Provider{pipeline.AgentNarrative: provider}, 2, 0, nil)
	fb := WithFallback(iv)

	out, err := fb.Invoke(context.Background(), pipeline.AgentNarrative, narrativeInput(12))
	if err != nil {
		t.Fatalf("Fallback phải thay lỗi bằng output mặc định: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("Fallback chỉ chạy sau khi cạn retry, calls = %d", provider.calls)
	}
	if out["pacingProfile"] != PacingFastCut {
		t.Errorf("duration 12 phải ra %s, got %v", PacingFastCut, out["pacingProfile"])
	}
	if len(out["visualBeats"].([]interface{})) != 1 {
		t.Errorf("duration 12 phải ra 1 beat, got %v", out["visualBeats"])
	}
}

func TestPacingProfileTheoNguong(t *testing.T) {
	cases := []struct {
		duration int64
		want     string
	}{
		{12, PacingFastCut},
		{15, PacingFastCut},
		{24, PacingMedium},
		{36, PacingMedium},
		{48, PacingSlowBurn},
	}
	for _, c := range cases {
		if got := PacingProfileForDuration(c.duration); got != c.want {
			t.Errorf("duration %d: got %s, want %s", c.duration, got, c.want)
		}
	}
}

func TestFallbackVoiceoverKhongKhaDung(t *testing.T) {
	_, err := Fallback(pipeline.AgentVoiceover, narrativeInput(12))
	if !errors.Is(err, common.ErrAgentInvocationFailed) {
		t.Errorf("Voiceover không có fallback, phải trả lỗi, got %v", err)
	}
}
