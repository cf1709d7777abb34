package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess             = 0
	CodeParamError          = 1000
	CodeAuthFailed          = 1001
	CodePermissionDenied    = 1002
	CodeResourceNotFound    = 1003
	CodeQuotaExceeded       = 1004
	CodeDuplicateAction     = 1005
	CodeSubscriptionExpired = 1006
	CodeInvalidState        = 1007
	CodeServerError         = 5000
	CodeGatewayError        = 5002
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:             "success",
	CodeParamError:          "invalid parameters",
	CodeAuthFailed:          "authentication failed",
	CodePermissionDenied:    "permission denied",
	CodeResourceNotFound:    "resource not found",
	CodeQuotaExceeded:       "insufficient responses remaining",
	CodeDuplicateAction:     "duplicate request",
	CodeSubscriptionExpired: "subscription has expired",
	CodeInvalidState:        "operation not allowed in current state",
	CodeServerError:         "internal server error",
	CodeGatewayError:        "payment gateway unavailable",
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PageData 分页数据结构
type PageData struct {
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
	Items      interface{} `json:"items"`
}

// Message 错误码的默认消息
func Message(code int) string {
	return codeMessages[code]
}

// WithStatus 使用真实 HTTP 状态码返回，供支付回调等外部调用方使用
func WithStatus(c *gin.Context, status, code int, message string, data interface{}) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	WithStatus(c, http.StatusOK, CodeSuccess, "", data)
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	WithStatus(c, http.StatusOK, CodeSuccess, message, data)
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	Success(c, PageData{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Items:      items,
	})
}

// Error 业务错误，HTTP 状态始终 200
func Error(c *gin.Context, code int, message string) {
	WithStatus(c, http.StatusOK, code, message, nil)
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// QuotaError 额度不足
func QuotaError(c *gin.Context, message string) {
	Error(c, CodeQuotaExceeded, message)
}

func DuplicateError(c *gin.Context, message string) {
	Error(c, CodeDuplicateAction, message)
}

// ExpiredError 订阅已过期
func ExpiredError(c *gin.Context, message string) {
	Error(c, CodeSubscriptionExpired, message)
}

// StateError 状态不允许该操作，例如取消已完成的支付
func StateError(c *gin.Context, message string) {
	Error(c, CodeInvalidState, message)
}

// GatewayError 支付网关不可用或拒绝
func GatewayError(c *gin.Context, message string) {
	Error(c, CodeGatewayError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}
