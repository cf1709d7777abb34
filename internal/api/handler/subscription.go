package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Aadiprofessional/edusmart-server/internal/api/middleware"
	"github.com/Aadiprofessional/edusmart-server/internal/model/dto"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/response"
	"github.com/Aadiprofessional/edusmart-server/internal/service"
)

// CreditRefresher 手动触发月度刷新，由 cron 服务提供
type CreditRefresher interface {
	RunNow(ctx context.Context) (int, error)
}

type SubscriptionHandler struct {
	ledger    *service.LedgerService
	plans     *service.PlanService
	refresher CreditRefresher
}

func NewSubscriptionHandler(ledger *service.LedgerService, plans *service.PlanService, refresher CreditRefresher) *SubscriptionHandler {
	return &SubscriptionHandler{
		ledger:    ledger,
		plans:     plans,
		refresher: refresher,
	}
}

// ListPlans 套餐列表
// GET /api/v1/subscriptions/plans
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	plans, err := h.plans.ListPlans()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, plans)
}

// ListAddons 加量包列表
// GET /api/v1/subscriptions/addons
func (h *SubscriptionHandler) ListAddons(c *gin.Context) {
	addons, err := h.plans.ListAddons()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, addons)
}

// GetStatus 当前订阅与剩余额度
// GET /api/v1/subscriptions/status
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.ledger.GetSubscriptionStatus(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, status)
}

// UseResponse 消耗额度
// POST /api/v1/subscriptions/use-response
func (h *SubscriptionHandler) UseResponse(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.UseResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	count := req.ResponsesUsed
	if count == 0 {
		count = 1
	}

	description := fmt.Sprintf("Used %d %s response(s)", count, req.ResponseType)
	remaining, err := h.ledger.UseCredits(c.Request.Context(), userID, count, description)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	response.Success(c, dto.UseResponseResponse{ResponsesRemaining: remaining})
}

// ListUsageLogs 额度流水
// GET /api/v1/subscriptions/usage-logs
func (h *SubscriptionHandler) ListUsageLogs(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var query dto.UsageLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	items, total, err := h.ledger.ListUsageLogs(userID, &query)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.SuccessPage(c, total, query.Page, query.PageSize, items)
}

// ListAll 全部订阅（管理员）
// GET /api/v1/subscriptions/admin/all
func (h *SubscriptionHandler) ListAll(c *gin.Context) {
	var query dto.AdminSubscriptionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	items, total, err := h.ledger.ListAllSubscriptions(&query)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.SuccessPage(c, total, query.Page, query.PageSize, items)
}

// RefreshResponses 手动执行月度刷新（管理员）
// POST /api/v1/subscriptions/admin/refresh-responses
func (h *SubscriptionHandler) RefreshResponses(c *gin.Context) {
	count, err := h.refresher.RunNow(c.Request.Context())
	if err != nil && count == 0 {
		response.ServerError(c, err.Error())
		return
	}

	message := "Monthly refresh completed"
	if err != nil {
		message = "Monthly refresh completed with errors: " + err.Error()
	}
	response.SuccessWithMessage(c, message, dto.RefreshResponse{Refreshed: count})
}

// CreatePlan 新建套餐（管理员）
// POST /api/v1/subscriptions/admin/plans
func (h *SubscriptionHandler) CreatePlan(c *gin.Context) {
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	plan, err := h.plans.CreatePlan(&req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPrice) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}
	response.Success(c, plan)
}

// CreateAddon 新建加量包（管理员）
// POST /api/v1/subscriptions/admin/addons
func (h *SubscriptionHandler) CreateAddon(c *gin.Context) {
	var req dto.CreateAddonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	addon, err := h.plans.CreateAddon(&req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPrice) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}
	response.Success(c, addon)
}

// RetirePlan 下架套餐（管理员）
// DELETE /api/v1/subscriptions/admin/plans/:id
func (h *SubscriptionHandler) RetirePlan(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid plan id")
		return
	}

	if err := h.plans.RetirePlan(id); err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}
	response.Success(c, nil)
}

// RetireAddon 下架加量包（管理员）
// DELETE /api/v1/subscriptions/admin/addons/:id
func (h *SubscriptionHandler) RetireAddon(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid addon id")
		return
	}

	if err := h.plans.RetireAddon(id); err != nil {
		if errors.Is(err, service.ErrAddonNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}
	response.Success(c, nil)
}

// writeLedgerError 账本错误到业务码
func writeLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCreditCount):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrNoActiveSubscription):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrSubscriptionExpired):
		response.ExpiredError(c, err.Error())
	case errors.Is(err, service.ErrInsufficientCredits):
		response.QuotaError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
