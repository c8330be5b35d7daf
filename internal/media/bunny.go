// Package media chứa blob store (Bunny CDN) và staging store cho upload
// trước khi persist. Thiếu credential thì từng feature degrade bằng lỗi
// có kiểu, không crash pipeline.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storia/internal/common"
)

// BlobStore là contract lưu trữ media bên ngoài:
// put(path, bytes) -> URL public; delete(path).
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
	DeleteByURL(ctx context.Context, url string) error
}

// BunnyStorage gọi Bunny storage API qua HTTP
type BunnyStorage struct {
	storageURL string // Endpoint storage zone (đã gồm tên zone)
	apiKey     string
	publicBase string // Base URL của pull zone public
	client     *http.Client
}

// NewBunnyStorage tạo blob store. storageURL rỗng = chưa cấu hình:
// mọi thao tác trả ErrStorageNotConfigured.
func NewBunnyStorage(storageURL, apiKey, publicBase string) *BunnyStorage {
	return &BunnyStorage{
		storageURL: strings.TrimSuffix(storageURL, "/"),
		apiKey:     apiKey,
		publicBase: strings.TrimSuffix(publicBase, "/"),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured cho biết store đã có credential chưa
func (s *BunnyStorage) Configured() bool {
	return s.storageURL != ""
}

// Put upload bytes lên storage và trả URL public của file
func (s *BunnyStorage) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if !s.Configured() {
		return "", common.ErrStorageNotConfigured
	}

	url := s.storageURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewBuffer(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("AccessKey", s.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("storage trả status %d khi upload %s", resp.StatusCode, path)
	}

	return s.publicBase + "/" + strings.TrimPrefix(path, "/"), nil
}

// Delete xóa file khỏi storage theo path
func (s *BunnyStorage) Delete(ctx context.Context, path string) error {
	if !s.Configured() {
		return common.ErrStorageNotConfigured
	}

	url := s.storageURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("AccessKey", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// 404 coi như đã xóa
	if resp.StatusCode != http.StatusNotFound && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return fmt.Errorf("storage trả status %d khi xóa %s", resp.StatusCode, path)
	}
	return nil
}

// DeleteByURL xóa file theo URL public đã lưu trong step data.
// URL không thuộc pull zone của mình thì bỏ qua (media ngoài không quản lý).
func (s *BunnyStorage) DeleteByURL(ctx context.Context, url string) error {
	if !s.Configured() {
		return common.ErrStorageNotConfigured
	}
	if s.publicBase == "" || !strings.HasPrefix(url, s.publicBase+"/") {
		return nil
	}
	return s.Delete(ctx, strings.TrimPrefix(url, s.publicBase+"/"))
}
