package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
	"github.com/Aadiprofessional/edusmart-server/internal/model/dto"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/response"
	"github.com/Aadiprofessional/edusmart-server/internal/repository"
	"github.com/Aadiprofessional/edusmart-server/internal/service"
	"github.com/Aadiprofessional/edusmart-server/internal/testutil"
)

type stubRefresher struct {
	count int
	err   error
}

func (r *stubRefresher) RunNow(ctx context.Context) (int, error) {
	return r.count, r.err
}

func newLedger(db *gorm.DB) *service.LedgerService {
	return service.NewLedgerService(
		db,
		repository.NewUserRepository(db),
		repository.NewPlanRepository(db),
		repository.NewAddonRepository(db),
		repository.NewSubscriptionRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewUsageLogRepository(db),
		testConfig(),
	)
}

func newPlanService(db *gorm.DB) *service.PlanService {
	return service.NewPlanService(repository.NewPlanRepository(db), repository.NewAddonRepository(db))
}

func setupSubscriptionHandler(t *testing.T) (*SubscriptionHandler, *gorm.DB, *stubRefresher, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	refresher := &stubRefresher{}
	handler := NewSubscriptionHandler(newLedger(db), newPlanService(db), refresher)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return handler, db, refresher, cleanup
}

func TestSubscriptionHandler_ListPlans_OnlyActive(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	testutil.TestPlan(t, db)
	testutil.TestPlan(t, db, testutil.WithPlanInactive())

	router := gin.New()
	router.GET("/plans", handler.ListPlans)

	w := performRequest(router, "GET", "/plans", nil)
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	plans, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, plans, 1)
}

func TestSubscriptionHandler_ListAddons(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	testutil.TestAddon(t, db)

	router := gin.New()
	router.GET("/addons", handler.ListAddons)

	w := performRequest(router, "GET", "/addons", nil)
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	addons, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, addons, 1)
}

func TestSubscriptionHandler_GetStatus(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	plan := testutil.TestPlan(t, db)
	testutil.TestSubscription(t, db, user.ID, plan, testutil.WithCreditsRemaining(42))

	router := gin.New()
	router.GET("/status", mockAuth(user.ID), handler.GetStatus)

	w := performRequest(router, "GET", "/status", nil)
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, true, data["has_subscription"])
	assert.Equal(t, float64(42), data["responses_remaining"])
}

func TestSubscriptionHandler_GetStatus_NoSubscription(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	router := gin.New()
	router.GET("/status", mockAuth(user.ID), handler.GetStatus)

	w := performRequest(router, "GET", "/status", nil)
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, false, data["has_subscription"])
	assert.Equal(t, float64(0), data["responses_remaining"])
}

func TestSubscriptionHandler_UseResponse(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	plan := testutil.TestPlan(t, db)
	testutil.TestSubscription(t, db, user.ID, plan)

	router := gin.New()
	router.POST("/use", mockAuth(user.ID), handler.UseResponse)

	w := performRequest(router, "POST", "/use", dto.UseResponseRequest{ResponseType: "essay", ResponsesUsed: 3})
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, float64(97), dataMap(t, resp)["responses_remaining"])

	var log model.UsageLog
	require.NoError(t, db.Where("user_id = ? AND action = ?", user.ID, model.UsageUsed).First(&log).Error)
	assert.Equal(t, -3, log.CreditsDelta)
	assert.Equal(t, "Used 3 essay response(s)", log.Description)
}

func TestSubscriptionHandler_UseResponse_DefaultsToOne(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	plan := testutil.TestPlan(t, db)
	testutil.TestSubscription(t, db, user.ID, plan)

	router := gin.New()
	router.POST("/use", mockAuth(user.ID), handler.UseResponse)

	w := performRequest(router, "POST", "/use", map[string]string{"response_type": "chat"})
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, float64(99), dataMap(t, resp)["responses_remaining"])
}

func TestSubscriptionHandler_UseResponse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, db *gorm.DB, userID int64)
		body     interface{}
		wantCode int
	}{
		{
			name:     "no subscription",
			setup:    func(t *testing.T, db *gorm.DB, userID int64) {},
			body:     dto.UseResponseRequest{ResponseType: "chat"},
			wantCode: response.CodeResourceNotFound,
		},
		{
			name: "insufficient",
			setup: func(t *testing.T, db *gorm.DB, userID int64) {
				plan := testutil.TestPlan(t, db)
				testutil.TestSubscription(t, db, userID, plan, testutil.WithCreditsRemaining(2))
			},
			body:     dto.UseResponseRequest{ResponseType: "chat", ResponsesUsed: 5},
			wantCode: response.CodeQuotaExceeded,
		},
		{
			name: "expired",
			setup: func(t *testing.T, db *gorm.DB, userID int64) {
				plan := testutil.TestPlan(t, db)
				now := time.Now()
				testutil.TestSubscription(t, db, userID, plan,
					testutil.WithSubscriptionPeriod(now.AddDate(0, 0, -31), now.Add(-time.Hour)))
			},
			body:     dto.UseResponseRequest{ResponseType: "chat"},
			wantCode: response.CodeSubscriptionExpired,
		},
		{
			name:     "missing response type",
			setup:    func(t *testing.T, db *gorm.DB, userID int64) {},
			body:     map[string]int{"responses_used": 1},
			wantCode: response.CodeParamError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, db, _, cleanup := setupSubscriptionHandler(t)
			defer cleanup()

			user := testutil.TestUser(t, db)
			tt.setup(t, db, user.ID)

			router := gin.New()
			router.POST("/use", mockAuth(user.ID), handler.UseResponse)

			w := performRequest(router, "POST", "/use", tt.body)
			resp := parseResponse(t, w)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestSubscriptionHandler_ListUsageLogs(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	plan := testutil.TestPlan(t, db)
	testutil.TestSubscription(t, db, user.ID, plan)

	router := gin.New()
	router.POST("/use", mockAuth(user.ID), handler.UseResponse)
	router.GET("/logs", mockAuth(user.ID), handler.ListUsageLogs)

	for i := 0; i < 3; i++ {
		w := performRequest(router, "POST", "/use", dto.UseResponseRequest{ResponseType: "chat"})
		require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)
	}

	w := performRequest(router, "GET", "/logs?page=1&limit=2", nil)
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, float64(3), data["total"])
	assert.Len(t, data["items"], 2)
}

func TestSubscriptionHandler_ListUsageLogs_InvalidAction(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	router := gin.New()
	router.GET("/logs", mockAuth(user.ID), handler.ListUsageLogs)

	w := performRequest(router, "GET", "/logs?action=deleted", nil)
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
}

func TestSubscriptionHandler_ListAll(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	plan := testutil.TestPlan(t, db)
	for i := 0; i < 2; i++ {
		user := testutil.TestUser(t, db, testutil.WithEmail(fmt.Sprintf("all%d@example.com", i)))
		testutil.TestSubscription(t, db, user.ID, plan)
	}

	router := gin.New()
	router.GET("/all", handler.ListAll)

	w := performRequest(router, "GET", "/all", nil)
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, float64(2), dataMap(t, resp)["total"])
}

func TestSubscriptionHandler_RefreshResponses(t *testing.T) {
	handler, _, refresher, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/refresh", handler.RefreshResponses)

	refresher.count = 3
	w := performRequest(router, "POST", "/refresh", nil)
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, float64(3), dataMap(t, resp)["refreshed"])

	refresher.count = 2
	refresher.err = errors.New("one row failed")
	w = performRequest(router, "POST", "/refresh", nil)
	resp = parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Contains(t, resp.Message, "one row failed")

	refresher.count = 0
	w = performRequest(router, "POST", "/refresh", nil)
	assert.Equal(t, response.CodeServerError, parseResponse(t, w).Code)
}

func TestSubscriptionHandler_CreateAndRetirePlan(t *testing.T) {
	handler, db, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/plans", handler.CreatePlan)
	router.DELETE("/plans/:id", handler.RetirePlan)

	w := performRequest(router, "POST", "/plans", map[string]interface{}{
		"name":           "Yearly",
		"price":          "99.99",
		"currency":       "USD",
		"duration_days":  365,
		"response_limit": 1000,
	})
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	id := int64(dataMap(t, resp)["id"].(float64))

	w = performRequest(router, "DELETE", fmt.Sprintf("/plans/%d", id), nil)
	require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	var plan model.SubscriptionPlan
	require.NoError(t, db.First(&plan, id).Error)
	assert.False(t, plan.IsActive)

	w = performRequest(router, "DELETE", "/plans/99999", nil)
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)

	w = performRequest(router, "DELETE", "/plans/abc", nil)
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
}

func TestSubscriptionHandler_CreatePlan_InvalidPrice(t *testing.T) {
	handler, _, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/plans", handler.CreatePlan)

	w := performRequest(router, "POST", "/plans", map[string]interface{}{
		"name":           "Broken",
		"price":          "-1",
		"currency":       "USD",
		"duration_days":  30,
		"response_limit": 10,
	})
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
}

func TestSubscriptionHandler_CreateAndRetireAddon(t *testing.T) {
	handler, _, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/addons", handler.CreateAddon)
	router.DELETE("/addons/:id", handler.RetireAddon)

	w := performRequest(router, "POST", "/addons", map[string]interface{}{
		"name":                 "Boost 50",
		"price":                "4.99",
		"currency":             "USD",
		"additional_responses": 50,
	})
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	id := int64(dataMap(t, resp)["id"].(float64))

	w = performRequest(router, "DELETE", fmt.Sprintf("/addons/%d", id), nil)
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(router, "DELETE", "/addons/99999", nil)
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)
}
