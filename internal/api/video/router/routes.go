// Package router đăng ký các route thuộc domain video: projects, step data,
// step transitions, render, assets.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"storia/internal/api/middleware"
	apirouter "storia/internal/api/router"
	videohdl "storia/internal/api/video/handler"
)

// Register đăng ký tất cả route video lên v1.
//
// Lưu ý phân quyền: POST /videos cần workspace context (header X-Workspace-ID)
// vì project chưa tồn tại. Các route /videos/:id chỉ cần auth — service tự
// kiểm tra membership với workspace sở hữu của project đã load.
func Register(v1 fiber.Router, r *apirouter.Router) error {
	videoHandler, err := videohdl.NewVideoProjectHandler()
	if err != nil {
		return fmt.Errorf("create video project handler: %w", err)
	}

	authMiddleware := middleware.AuthMiddleware()
	wsContextMiddleware := middleware.WorkspaceContextMiddleware()

	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "POST", "/", []fiber.Handler{authMiddleware, wsContextMiddleware}, videoHandler.Create)
	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "GET", "/", []fiber.Handler{authMiddleware, wsContextMiddleware}, videoHandler.List)

	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "GET", "/:id", []fiber.Handler{authMiddleware}, videoHandler.GetByID)
	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "PATCH", "/:id", []fiber.Handler{authMiddleware}, videoHandler.Update)
	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "DELETE", "/:id", []fiber.Handler{authMiddleware}, videoHandler.Delete)

	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "PATCH", "/:id/step/:n/data", []fiber.Handler{authMiddleware}, videoHandler.PatchStepData)
	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "PATCH", "/:id/step/:n/continue", []fiber.Handler{authMiddleware}, videoHandler.ContinueStep)
	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "PATCH", "/:id/step/:n/enter", []fiber.Handler{authMiddleware}, videoHandler.EnterStep)
	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "PATCH", "/:id/step/:n/leave", []fiber.Handler{authMiddleware}, videoHandler.LeaveStep)

	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "GET", "/:id/render", []fiber.Handler{authMiddleware}, videoHandler.RenderStatus)
	apirouter.RegisterRouteWithMiddleware(v1, "/videos", "POST", "/:id/step/:n/assets", []fiber.Handler{authMiddleware}, videoHandler.UploadAsset)

	return nil
}
