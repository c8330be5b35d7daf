package basehdl

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"storia/internal/common"
	"storia/internal/global"
)

// SystemHandler xử lý các route liên quan đến system operations
type SystemHandler struct{}

// NewSystemHandler tạo một instance mới của SystemHandler
func NewSystemHandler() (*SystemHandler, error) {
	return &SystemHandler{}, nil
}

// HandleHealth kiểm tra tình trạng hệ thống: database connection và
// trạng thái cấu hình của các dịch vụ ngoài (AI providers, storage, render)
func (h *SystemHandler) HandleHealth(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	services := fiber.Map{
		"api": "ok",
	}
	healthData := fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"services":  services,
	}

	// Các dịch vụ ngoài optional: thiếu cấu hình không làm degraded,
	// chỉ report để vận hành nhìn thấy
	if global.Blob != nil && global.Blob.Configured() {
		services["storage"] = "configured"
	} else {
		services["storage"] = "not_configured"
	}
	if global.Renderer != nil && global.Renderer.Configured() {
		services["render"] = "configured"
	} else {
		services["render"] = "not_configured"
	}
	if global.ServerConfig != nil && global.ServerConfig.LLMBaseURL != "" {
		services["llm"] = "configured"
	} else {
		services["llm"] = "not_configured"
	}
	if global.ServerConfig != nil && global.ServerConfig.TTSBaseURL != "" {
		services["tts"] = "configured"
	} else {
		services["tts"] = "not_configured"
	}

	// Kiểm tra MongoDB connection
	if global.MongoDB_Session != nil {
		if err := global.MongoDB_Session.Ping(ctx, nil); err != nil {
			healthData["status"] = "degraded"
			services["database"] = "error"
			healthData["database_error"] = err.Error()
			return c.Status(common.StatusServiceUnavailable).JSON(fiber.Map{
				"code":    common.StatusServiceUnavailable,
				"message": "Hệ thống đang gặp sự cố",
				"data":    healthData,
				"status":  "error",
			})
		}
		services["database"] = "ok"
	} else {
		healthData["status"] = "degraded"
		services["database"] = "not_initialized"
	}

	return c.Status(common.StatusOK).JSON(fiber.Map{
		"code":    common.StatusOK,
		"message": common.MsgSuccess,
		"data":    healthData,
		"status":  "success",
	})
}
