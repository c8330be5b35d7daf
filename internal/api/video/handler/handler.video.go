// Package videohdl xử lý các request HTTP của video project wizard
package videohdl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v3"

	basehdl "storia/internal/api/base/handler"
	"storia/internal/api/middleware"
	videodto "storia/internal/api/video/dto"
	videosvc "storia/internal/api/video/service"
	"storia/internal/common"
	"storia/internal/utility"
)

// Giới hạn kích thước reference image upload
const maxAssetBytes = 10 << 20 // 10MB

// VideoProjectHandler xử lý các request liên quan đến video project
type VideoProjectHandler struct {
	service *videosvc.VideoProjectService
}

// NewVideoProjectHandler tạo mới VideoProjectHandler
func NewVideoProjectHandler() (*VideoProjectHandler, error) {
	service, err := videosvc.NewVideoProjectService()
	if err != nil {
		return nil, fmt.Errorf("failed to create video project service: %v", err)
	}
	return &VideoProjectHandler{service: service}, nil
}

// stepParam đọc và validate param :n (số thứ tự step, 1-based)
func stepParam(c fiber.Ctx) (int, error) {
	n, err := strconv.Atoi(c.Params("n"))
	if err != nil || n < 1 {
		return 0, common.NewError(common.ErrCodeValidationFormat,
			fmt.Sprintf("Step không hợp lệ: %q", c.Params("n")),
			common.StatusBadRequest, nil)
	}
	return n, nil
}

// Create xử lý POST /videos: tạo project mới trong workspace hiện tại
func (h *VideoProjectHandler) Create(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		var input videodto.VideoCreateInput
		if err := basehdl.ParseRequestBody(c, &input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}
		if err := basehdl.ValidateInput(&input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		project, err := h.service.Create(c.Context(), utility.String2ObjectID(middleware.WorkspaceID(c)), input)
		basehdl.HandleResponse(c, project, err)
		return nil
	})
}

// List xử lý GET /videos: danh sách project của workspace hiện tại, phân trang
func (h *VideoProjectHandler) List(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		page, _ := strconv.ParseInt(c.Query("page", "1"), 10, 64)
		limit, _ := strconv.ParseInt(c.Query("limit", "20"), 10, 64)

		result, err := h.service.List(c.Context(), utility.String2ObjectID(middleware.WorkspaceID(c)), page, limit)
		basehdl.HandleResponse(c, result, err)
		return nil
	})
}

// GetByID xử lý GET /videos/:id
func (h *VideoProjectHandler) GetByID(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		project, err := h.service.Get(c.Context(), c.Params("id"), middleware.UserID(c))
		basehdl.HandleResponse(c, project, err)
		return nil
	})
}

// Update xử lý PATCH /videos/:id: đổi metadata hoặc cascade reset về một step
func (h *VideoProjectHandler) Update(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		var input videodto.VideoUpdateInput
		if err := basehdl.ParseRequestBody(c, &input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}
		if err := basehdl.ValidateInput(&input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		project, err := h.service.Update(c.Context(), c.Params("id"), middleware.UserID(c), input)
		basehdl.HandleResponse(c, project, err)
		return nil
	})
}

// Delete xử lý DELETE /videos/:id: xóa project kèm media ngoài
func (h *VideoProjectHandler) Delete(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		err := h.service.Delete(c.Context(), c.Params("id"), middleware.UserID(c))
		basehdl.HandleResponse(c, nil, err)
		return nil
	})
}

// PatchStepData xử lý PATCH /videos/:id/step/:n/data: partial update step data.
// Body là raw map để giữ phân biệt null (tombstone xóa field) với field vắng mặt.
func (h *VideoProjectHandler) PatchStepData(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		step, err := stepParam(c)
		if err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		var input videodto.StepPatchInput
		if err := basehdl.ParseRequestBody(c, &input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}
		if err := basehdl.ValidateInput(&input); err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		project, err := h.service.PatchStep(c.Context(), c.Params("id"), step, input.Data, middleware.UserID(c))
		basehdl.HandleResponse(c, project, err)
		return nil
	})
}

// ContinueStep xử lý PATCH /videos/:id/step/:n/continue: chạy state machine
// advance (dirty check, validate, invoke agent, persist)
func (h *VideoProjectHandler) ContinueStep(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		step, err := stepParam(c)
		if err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		// Body optional: không gửi gì = continue thường, không confirm reset
		var input videodto.StepContinueInput
		if len(c.Body()) > 0 {
			if err := basehdl.ParseRequestBody(c, &input); err != nil {
				basehdl.HandleResponse(c, nil, err)
				return nil
			}
		}

		result, err := h.service.ContinueStep(c.Context(), c.Params("id"), step, middleware.UserID(c), input)
		basehdl.HandleResponse(c, result, err)
		return nil
	})
}

// EnterStep xử lý PATCH /videos/:id/step/:n/enter: trigger auto-generation
// đúng một lần khi client vào step
func (h *VideoProjectHandler) EnterStep(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		step, err := stepParam(c)
		if err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		invoked, project, err := h.service.EnterStep(c.Context(), c.Params("id"), step, middleware.UserID(c))
		basehdl.HandleResponse(c, fiber.Map{
			"agentInvoked": invoked,
			"project":      project,
		}, err)
		return nil
	})
}

// LeaveStep xử lý PATCH /videos/:id/step/:n/leave: reset auto-invocation guard
// khi client rời step chưa có artifact
func (h *VideoProjectHandler) LeaveStep(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		step, err := stepParam(c)
		if err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		err = h.service.LeaveStep(c.Context(), c.Params("id"), step, middleware.UserID(c))
		basehdl.HandleResponse(c, nil, err)
		return nil
	})
}

// RenderStatus xử lý GET /videos/:id/render: poll trạng thái render
func (h *VideoProjectHandler) RenderStatus(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		status, err := h.service.RenderStatus(c.Context(), c.Params("id"), middleware.UserID(c))
		basehdl.HandleResponse(c, status, err)
		return nil
	})
}

// UploadAsset xử lý POST /videos/:id/step/:n/assets: upload reference image
// (multipart field "file"), đẩy lên blob store và gắn URL vào step data
func (h *VideoProjectHandler) UploadAsset(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		step, err := stepParam(c)
		if err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			basehdl.HandleResponse(c, nil, common.NewError(common.ErrCodeValidationInput,
				"Thiếu file upload (multipart field 'file')", common.StatusBadRequest, err))
			return nil
		}
		if fileHeader.Size > maxAssetBytes {
			basehdl.HandleResponse(c, nil, common.NewError(common.ErrCodeValidationInput,
				"File vượt quá kích thước cho phép (10MB)", common.StatusBadRequest, nil))
			return nil
		}

		file, err := fileHeader.Open()
		if err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			basehdl.HandleResponse(c, nil, err)
			return nil
		}

		result, err := h.service.UploadAsset(c.Context(), c.Params("id"), step,
			fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data, middleware.UserID(c))
		basehdl.HandleResponse(c, result, err)
		return nil
	})
}
