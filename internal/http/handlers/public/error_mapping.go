package public

import (
	handlershared "github.com/paycore/internal/http/handlers/shared"
	"github.com/paycore/internal/http/response"
	"github.com/paycore/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var orderErrorRules = []handlershared.MappedError{
	{Target: service.ErrInvalidOrderInput, Code: response.CodeBadRequest, Message: "invalid order input"},
	{Target: service.ErrCallbackInvalid, Code: response.CodeBadRequest, Message: "invalid callback"},
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Message: "order not found"},
	{Target: service.ErrMerchantNotFound, Code: response.CodeNotFound, Message: "merchant not found"},
	{Target: service.ErrMerchantClosed, Code: response.CodeForbidden, Message: "merchant is closed"},
	{Target: service.ErrChannelUnsupported, Code: response.CodeBadRequest, Message: "trade type not enabled for merchant"},
	{Target: service.ErrNoChannelHandler, Code: response.CodeBadRequest, Message: "trade type not supported"},
	{Target: service.ErrTransitionConflict, Code: response.CodeConflict, Message: "order status conflict"},
	{Target: service.ErrRefundNotAllowed, Code: response.CodeConflict, Message: "order cannot be refunded"},
	{Target: service.ErrLockAcquire, Code: response.CodeTooManyRequests, Message: "order is busy, retry later"},
	{Target: service.ErrPrepayFailed, Code: response.CodeServiceUnavailable, Message: "payment channel unavailable"},
	{Target: service.ErrGatewayFailed, Code: response.CodeServiceUnavailable, Message: "payment channel unavailable"},
	{Target: service.ErrStoreUnavailable, Code: response.CodeServiceUnavailable, Message: "store unavailable"},
}

func respondOrderError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, orderErrorRules, response.CodeInternal, "internal error")
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}
