package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey gin 上下文中的请求 ID
const RequestIDKey = "request_id"

// Response 统一响应结构
type Response struct {
	StatusCode int         `json:"status_code"` // 业务状态码
	Msg        string      `json:"msg"`
	Data       interface{} `json:"data"`
	RequestID  string      `json:"request_id,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	Response
	Pagination Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// NewPagination 根据总数计算页数
func NewPagination(page, pageSize int, total int64) Pagination {
	p := Pagination{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		p.TotalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return p
}

func build(c *gin.Context, code int, msg string, data interface{}) Response {
	return Response{StatusCode: code, Msg: msg, Data: data, RequestID: requestID(c)}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, build(c, CodeOK, "success", data))
}

// SuccessWithMsg 成功响应（自定义消息）
func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, build(c, CodeOK, msg, data))
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, PageResponse{
		Response:   build(c, CodeOK, "success", data),
		Pagination: pagination,
	})
}

// Error 错误响应，HTTP 状态固定 200，业务码见 codes.go
func Error(c *gin.Context, code int, msg string) {
	c.JSON(http.StatusOK, build(c, code, msg, nil))
}

// Unauthorized 401响应
func Unauthorized(c *gin.Context, msg string) {
	Error(c, CodeUnauthorized, msg)
}

// BadRequest 400响应
func BadRequest(c *gin.Context, msg string) {
	Error(c, CodeBadRequest, msg)
}

func requestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(RequestIDKey)
}
