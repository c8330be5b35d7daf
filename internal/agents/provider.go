// Package agents bọc các lời gọi AI agent bên ngoài (LLM sinh text,
// TTS sinh voiceover) thành một contract duy nhất: retry với backoff,
// validate schema response, và fallback deterministic khi caller yêu cầu.
package agents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"storia/internal/common"
)

// Provider là một endpoint AI bên ngoài: nhận payload JSON, trả body JSON thô.
// Retry và schema validation KHÔNG nằm ở đây mà ở Invoker.
type Provider interface {
	Call(ctx context.Context, agentID string, payload []byte) ([]byte, error)
}

// HTTPProvider gọi agent qua HTTP POST JSON với bearer key
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider tạo provider cho một dịch vụ AI.
// baseURL rỗng = chưa cấu hình: mọi Call trả ErrAgentNotConfigured
// (degrade feature, không crash pipeline).
func NewHTTPProvider(name, baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Call gửi input đến endpoint của agent và trả body response
func (p *HTTPProvider) Call(ctx context.Context, agentID string, payload []byte) ([]byte, error) {
	if p.baseURL == "" {
		return nil, common.ErrAgentNotConfigured
	}

	url := fmt.Sprintf("%s/v1/agents/%s/invoke", p.baseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider %s trả status %d cho agent %s", p.name, resp.StatusCode, agentID)
	}

	return body, nil
}
