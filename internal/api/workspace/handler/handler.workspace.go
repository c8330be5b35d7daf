// Package wshdl xử lý các request HTTP của workspace
package wshdl

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	basehdl "storia/internal/api/base/handler"
	"storia/internal/api/middleware"
	wsdto "storia/internal/api/workspace/dto"
	wssvc "storia/internal/api/workspace/service"
	"storia/internal/common"
)

// WorkspaceHandler xử lý các request liên quan đến workspace
type WorkspaceHandler struct {
	service *wssvc.WorkspaceService
}

// NewWorkspaceHandler tạo mới WorkspaceHandler
func NewWorkspaceHandler() (*WorkspaceHandler, error) {
	service, err := wssvc.NewWorkspaceService()
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace service: %v", err)
	}
	return &WorkspaceHandler{service: service}, nil
}

// Create xử lý POST /workspaces: tạo workspace, user hiện tại làm owner
func (h *WorkspaceHandler) Create(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		var input wsdto.WorkspaceCreateInput
		if err := basehdl.ParseRequestBody(c, &input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}
		if err := basehdl.ValidateInput(&input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		workspace, err := h.service.Create(c.Context(), input.Name, middleware.UserID(c), input.FeatureFlags)
		basehdl.HandleResponse(c, workspace, err)
		return nil
	})
}

// AddMember xử lý POST /workspaces/:id/members: thêm member vào workspace.
// Chỉ member hiện tại mới được thêm người khác.
func (h *WorkspaceHandler) AddMember(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		workspaceID, err := primitive.ObjectIDFromHex(c.Params("id"))
		if err != nil {
			basehdl.HandleResponse(c, nil, common.ErrInvalidFormat)
			return nil
		}

		var input wsdto.WorkspaceMemberAddInput
		if err := basehdl.ParseRequestBody(c, &input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}
		if err := basehdl.ValidateInput(&input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		if err := h.service.RequireMember(c.Context(), workspaceID, middleware.UserID(c)); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		member, err := h.service.AddMember(c.Context(), workspaceID, input.UserID, input.Role)
		basehdl.HandleResponse(c, member, err)
		return nil
	})
}
