package shared

import (
	"errors"

	"github.com/paycore/internal/http/response"
	"github.com/paycore/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 携带 request_id 的日志实例
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if id := c.GetString(response.RequestIDKey); id != "" {
		return logger.SW("request_id", id)
	}
	return logger.S()
}

// RespondErrorWithMsg 返回错误响应，err 非空时记录日志
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", code,
			"message", msg,
			"error", err,
		)
	}
	response.Error(c, code, msg)
}

// MappedError 业务错误到接口错误码的映射
type MappedError struct {
	Target  error
	Code    int
	Message string
}

// RespondMappedError 按映射表返回错误，未命中时使用兜底错误码并记录日志
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			RequestLog(c).Infow("handler_business_error", "code", rule.Code, "error", err)
			response.Error(c, rule.Code, rule.Message)
			return
		}
	}
	RespondErrorWithMsg(c, fallbackCode, fallbackMsg, err)
}
