package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	basehdl "storia/internal/api/base/handler"
	wssvc "storia/internal/api/workspace/service"
	"storia/internal/common"
)

// WorkspaceContextMiddleware middleware quản lý workspace context.
// - Đọc X-Workspace-ID từ header
// - Validate user (đã được AuthMiddleware set) có membership trong workspace
// - Lưu workspace_id vào context cho handler
//
// Route project theo :id không đi qua đây: service tự check membership
// với workspaceId của project sau khi load document.
func WorkspaceContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(string)
		if !ok || userID == "" {
			basehdl.HandleResponse(c, nil, common.ErrTokenMissing)
			return nil
		}

		workspaceIDStr := c.Get("X-Workspace-ID")
		if workspaceIDStr == "" {
			basehdl.HandleResponse(c, nil, common.NewError(
				common.ErrCodeAuthWorkspace,
				"Thiếu header X-Workspace-ID",
				common.StatusBadRequest,
				nil,
			))
			return nil
		}

		workspaceID, err := primitive.ObjectIDFromHex(workspaceIDStr)
		if err != nil {
			basehdl.HandleResponse(c, nil, common.NewError(
				common.ErrCodeValidationFormat,
				"X-Workspace-ID không đúng định dạng",
				common.StatusBadRequest,
				nil,
			))
			return nil
		}

		workspaceService, err := wssvc.NewWorkspaceService()
		if err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		if err := workspaceService.RequireMember(context.Background(), workspaceID, userID); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		c.Locals("workspace_id", workspaceID.Hex())
		return c.Next()
	}
}

// WorkspaceID đọc workspace id đã được WorkspaceContextMiddleware set
func WorkspaceID(c fiber.Ctx) string {
	id, _ := c.Locals("workspace_id").(string)
	return id
}
