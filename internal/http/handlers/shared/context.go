package shared

import (
	"strings"

	"github.com/paycore/internal/http/response"

	"github.com/gin-gonic/gin"
)

// MerchantNoKey 鉴权后写入上下文的商户编号
const MerchantNoKey = "merchant_no"

// GetMerchantNo 从上下文读取商户编号，缺失时返回 401
func GetMerchantNo(c *gin.Context) (string, bool) {
	value, exists := c.Get(MerchantNoKey)
	if !exists {
		response.Unauthorized(c, "unauthorized")
		return "", false
	}
	merchantNo, ok := value.(string)
	if !ok || strings.TrimSpace(merchantNo) == "" {
		response.Unauthorized(c, "unauthorized")
		return "", false
	}
	return merchantNo, true
}
