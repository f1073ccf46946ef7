package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func LoggerMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		reqID, _ := c.Locals(CtxRequestID).(string)
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		// после AuthMiddleware в логе виден инициатор операции
		if uid, ok := c.Locals(CtxTelegramUserID).(int64); ok && uid != 0 {
			fields = append(fields, zap.Int64("telegram_user_id", uid))
		}
		log.Info("request", fields...)

		return err
	}
}
