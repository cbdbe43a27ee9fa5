package wechatpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/paycore/internal/models"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
)

// fenAmount 微信金额字段，单位为分；缺省时对应指针为 nil
type fenAmount struct {
	Total  *int64 `json:"total"`
	Refund *int64 `json:"refund"`
}

// transactionResource 交易通知明文与订单查询应答
type transactionResource struct {
	OutTradeNo    string     `json:"out_trade_no"`
	TransactionID string     `json:"transaction_id"`
	TradeState    string     `json:"trade_state"`
	SuccessTime   string     `json:"success_time"`
	Amount        *fenAmount `json:"amount"`
}

// refundResource 退款通知明文与退款申请应答
type refundResource struct {
	OutTradeNo    string     `json:"out_trade_no"`
	TransactionID string     `json:"transaction_id"`
	RefundID      string     `json:"refund_id"`
	RefundStatus  string     `json:"refund_status"`
	Status        string     `json:"status"`
	Amount        *fenAmount `json:"amount"`
}

// state 退款通知使用 refund_status，退款申请应答使用 status
func (r refundResource) state() string {
	return pickFirstNonEmpty(r.RefundStatus, r.Status)
}

type prepayReply struct {
	PrepayID string `json:"prepay_id"`
	H5URL    string `json:"h5_url"`
	CodeURL  string `json:"code_url"`
}

type payScoreReply struct {
	OrderID string `json:"order_id"`
	Package string `json:"package"`
}

func (a *fenAmount) total() (models.Money, bool) {
	if a == nil || a.Total == nil {
		return models.Money{}, false
	}
	return models.NewMoneyFromFen(*a.Total), true
}

func (a *fenAmount) refund() (models.Money, bool) {
	if a == nil || a.Refund == nil {
		return models.Money{}, false
	}
	return models.NewMoneyFromFen(*a.Refund), true
}

// callJSON 发起已签名请求，应答同时解码到 out 并以原始 map 返回用于留档
func callJSON(ctx context.Context, client *core.Client, method, requestURL string, payload interface{}, out interface{}) (map[string]interface{}, error) {
	var (
		result *core.APIResult
		err    error
	)
	switch method {
	case http.MethodGet:
		result, err = client.Get(ctx, requestURL)
	default:
		result, err = client.Post(ctx, requestURL, payload)
	}
	if err != nil {
		var apiErr *core.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s %s", ErrResponseInvalid, apiErr.Code, strings.TrimSpace(apiErr.Message))
		}
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	body, err := readReply(result)
	if err != nil {
		return nil, err
	}
	raw := map[string]interface{}{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("%w: unexpected response shape", ErrResponseInvalid)
		}
	}
	return raw, nil
}

func readReply(result *core.APIResult) ([]byte, error) {
	if result == nil || result.Response == nil || result.Response.Body == nil {
		return nil, fmt.Errorf("%w: empty response", ErrResponseInvalid)
	}
	defer result.Response.Body.Close()

	body, err := io.ReadAll(result.Response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	code := result.Response.StatusCode
	switch {
	case code < 200 || code >= 300:
		return nil, fmt.Errorf("%w: status %d %s", ErrResponseInvalid, code, strings.TrimSpace(string(body)))
	case len(body) == 0:
		return nil, fmt.Errorf("%w: empty response body", ErrResponseInvalid)
	}
	return body, nil
}
