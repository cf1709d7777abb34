package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aadiprofessional/edusmart-server/internal/api/middleware"
	"github.com/Aadiprofessional/edusmart-server/internal/model/dto"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/antom"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/response"
	"github.com/Aadiprofessional/edusmart-server/internal/service"
)

// notifyAck 网关要求的回调应答，非此格式会触发重发
var notifyAck = gin.H{
	"result": gin.H{
		"resultCode":    "SUCCESS",
		"resultStatus":  "S",
		"resultMessage": "success",
	},
}

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// Methods 支付方式
// GET /api/v1/payment/methods
func (h *PaymentHandler) Methods(c *gin.Context) {
	response.Success(c, h.paymentService.PaymentMethods())
}

// Create 创建支付
// POST /api/v1/payment/create
func (h *PaymentHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.CreatePayment(c.Request.Context(), userID, &req)
	if err != nil {
		writePaymentError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Payment created successfully", resp)
}

// Status 查询支付状态
// GET /api/v1/payment/status/:paymentRequestId
func (h *PaymentHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.paymentService.QueryPaymentStatus(c.Request.Context(), userID, c.Param("paymentRequestId"))
	if err != nil {
		writePaymentError(c, err)
		return
	}

	response.Success(c, resp)
}

// Cancel 取消支付
// POST /api/v1/payment/cancel/:paymentRequestId
func (h *PaymentHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.paymentService.CancelPayment(c.Request.Context(), userID, c.Param("paymentRequestId"))
	if err != nil {
		writePaymentError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Payment cancelled successfully", resp)
}

// History 支付记录
// GET /api/v1/payment/history
func (h *PaymentHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var query dto.PaymentHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	items, total, err := h.paymentService.ListPayments(userID, &query)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.SuccessPage(c, total, query.Page, query.PageSize, items)
}

// Notify 网关异步回调，使用真实 HTTP 状态码
// POST /api/v1/payment/notify
func (h *PaymentHandler) Notify(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.WithStatus(c, http.StatusBadRequest, response.CodeParamError, "unreadable body", nil)
		return
	}

	err = h.paymentService.HandleNotification(c.Request.Context(), &service.Notification{
		Signature:   c.GetHeader("Signature"),
		RequestTime: c.GetHeader("Request-Time"),
		Body:        body,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid):
			response.WithStatus(c, http.StatusUnauthorized, response.CodeAuthFailed, err.Error(), nil)
		case errors.Is(err, service.ErrPaymentNotFound):
			response.WithStatus(c, http.StatusNotFound, response.CodeResourceNotFound, err.Error(), nil)
		case errors.Is(err, service.ErrMalformedNotification):
			response.WithStatus(c, http.StatusBadRequest, response.CodeParamError, err.Error(), nil)
		default:
			response.WithStatus(c, http.StatusInternalServerError, response.CodeServerError, "", nil)
		}
		return
	}

	c.JSON(http.StatusOK, notifyAck)
}

// writePaymentError 支付错误到业务码
func writePaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidPaymentTarget),
		errors.Is(err, service.ErrUnsupportedMethod):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrAddonNotFound),
		errors.Is(err, service.ErrUserNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrPaymentNotPending):
		response.StateError(c, err.Error())
	case errors.Is(err, antom.ErrPaymentRejected):
		response.GatewayError(c, err.Error())
	case errors.Is(err, antom.ErrTransport), errors.Is(err, antom.ErrMalformedResponse):
		response.GatewayError(c, "")
	default:
		response.ServerError(c, "")
	}
}
