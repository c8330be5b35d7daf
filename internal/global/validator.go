package global

import (
	"github.com/go-playground/validator/v10"

	"storia/internal/api/video/pipeline"
)

// videoModes là các pipeline mode hợp lệ của project
var videoModes = map[string]bool{
	pipeline.ModeCommerce:      true,
	pipeline.ModeCharacterVlog: true,
}

// InitValidator khởi tạo và đăng ký các custom validator
func InitValidator() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("video_mode", validateVideoMode)
	_ = Validate.RegisterValidation("video_duration", validateVideoDuration)
}

// validateVideoMode kiểm tra mode có thuộc danh sách pipeline được hỗ trợ không
func validateVideoMode(fl validator.FieldLevel) bool {
	return videoModes[fl.Field().String()]
}

// validateVideoDuration kiểm tra duration thuộc enum đóng (nguồn sự thật ở package pipeline)
func validateVideoDuration(fl validator.FieldLevel) bool {
	if !fl.Field().CanInt() {
		return false
	}
	return pipeline.IsAllowedDuration(fl.Field().Int())
}

// IsValidMode dùng khi tạo project
func IsValidMode(mode string) bool {
	return videoModes[mode]
}
