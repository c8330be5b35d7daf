// Package render bọc dịch vụ render video bên ngoài (Shotstack-shaped).
// Render không bao giờ được await trong flow advance: submit trả renderId
// ngay, trạng thái chỉ quan sát được qua endpoint poll riêng.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storia/internal/common"
)

// Status là trạng thái một lần render
type Status struct {
	ID     string `json:"id"`
	Status string `json:"status"` // queued | rendering | done | failed
	URL    string `json:"url,omitempty"`
}

// Service là contract render: submit(edit) -> renderId; poll(renderId) -> status
type Service interface {
	Submit(ctx context.Context, edit map[string]interface{}) (string, error)
	Poll(ctx context.Context, renderID string) (Status, error)
}

// ShotstackService gọi render API qua HTTP với x-api-key
type ShotstackService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewShotstackService tạo service. baseURL rỗng = chưa cấu hình:
// mọi thao tác trả ErrRenderNotConfigured.
func NewShotstackService(baseURL, apiKey string) *ShotstackService {
	return &ShotstackService{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured cho biết service đã có credential chưa
func (s *ShotstackService) Configured() bool {
	return s.baseURL != ""
}

type submitResponse struct {
	Response struct {
		ID string `json:"id"`
	} `json:"response"`
}

type pollResponse struct {
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		URL    string `json:"url"`
	} `json:"response"`
}

// Submit gửi edit JSON cho render service, trả renderId ngay không chờ render xong
func (s *ShotstackService) Submit(ctx context.Context, edit map[string]interface{}) (string, error) {
	if !s.Configured() {
		return "", common.ErrRenderNotConfigured
	}

	payload, err := json.Marshal(edit)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/render", bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("render service trả status %d khi submit", resp.StatusCode)
	}

	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.Response.ID == "" {
		return "", fmt.Errorf("render service không trả renderId")
	}
	return out.Response.ID, nil
}

// Poll hỏi trạng thái một lần render theo renderId
func (s *ShotstackService) Poll(ctx context.Context, renderID string) (Status, error) {
	if !s.Configured() {
		return Status{}, common.ErrRenderNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/render/"+renderID, nil)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Status{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return Status{}, common.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Status{}, fmt.Errorf("render service trả status %d khi poll", resp.StatusCode)
	}

	var out pollResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Status{}, err
	}
	return Status{
		ID:     out.Response.ID,
		Status: out.Response.Status,
		URL:    out.Response.URL,
	}, nil
}
