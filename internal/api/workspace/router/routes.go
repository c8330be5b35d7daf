// Package router đăng ký các route thuộc domain workspace.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	basehdl "storia/internal/api/base/handler"
	"storia/internal/api/middleware"
	apirouter "storia/internal/api/router"
	wshdl "storia/internal/api/workspace/handler"
)

// Register đăng ký tất cả route workspace và system lên v1.
func Register(v1 fiber.Router, r *apirouter.Router) error {
	workspaceHandler, err := wshdl.NewWorkspaceHandler()
	if err != nil {
		return fmt.Errorf("create workspace handler: %w", err)
	}

	authMiddleware := middleware.AuthMiddleware()

	apirouter.RegisterRouteWithMiddleware(v1, "/workspaces", "POST", "/", []fiber.Handler{authMiddleware}, workspaceHandler.Create)
	apirouter.RegisterRouteWithMiddleware(v1, "/workspaces", "POST", "/:id/members", []fiber.Handler{authMiddleware}, workspaceHandler.AddMember)

	// Health check không cần auth
	systemHandler, err := basehdl.NewSystemHandler()
	if err != nil {
		return fmt.Errorf("failed to create system handler: %w", err)
	}
	v1.Get("/system/health", systemHandler.HandleHealth)

	return nil
}
