package middleware

import (
	"fmt"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	basehdl "storia/internal/api/base/handler"
	"storia/internal/common"
	"storia/internal/global"
	"storia/internal/logger"
)

// AuthMiddleware middleware xác thực JWT cho Fiber.
// Parse Bearer token bằng JWT secret, lưu user_id (subject) vào context.
// Stateless: không tra database, token hết hạn hoặc sai chữ ký là từ chối.
func AuthMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			logger.GetAppLogger().WithFields(logrus.Fields{
				"path":   c.Path(),
				"method": c.Method(),
			}).Warn("❌ [AUTH] Missing Authorization header")
			basehdl.HandleResponse(c, nil, common.ErrTokenMissing)
			return nil
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			basehdl.HandleResponse(c, nil, common.ErrTokenInvalid)
			return nil
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("signing method không được hỗ trợ: %v", t.Header["alg"])
			}
			return []byte(global.ServerConfig.JwtSecret), nil
		})
		if err != nil {
			ve, ok := err.(*jwt.ValidationError)
			if ok && ve.Errors&jwt.ValidationErrorExpired != 0 {
				basehdl.HandleResponse(c, nil, common.ErrTokenExpired)
				return nil
			}
			basehdl.HandleResponse(c, nil, common.ErrTokenInvalid)
			return nil
		}
		if !token.Valid {
			basehdl.HandleResponse(c, nil, common.ErrTokenInvalid)
			return nil
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			basehdl.HandleResponse(c, nil, common.ErrTokenInvalid)
			return nil
		}

		// Lưu thông tin user vào context
		c.Locals("user_id", sub)
		return c.Next()
	}
}

// UserID đọc user id đã được AuthMiddleware set vào context
func UserID(c fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
