package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aadiprofessional/edusmart-server/internal/pkg/response"
)

func setupIdempotency(t *testing.T, handler gin.HandlerFunc) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(UserIDKey, int64(7))
		c.Next()
	})
	router.POST("/pay", Idempotency(rdb, 24*time.Hour), handler)
	return router, mr
}

func postWithKey(router http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/pay", nil)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	calls := 0
	router, mr := setupIdempotency(t, func(c *gin.Context) {
		calls++
		response.Success(c, gin.H{"call": calls})
	})

	first := postWithKey(router, "key-1")
	second := postWithKey(router, "key-1")

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Empty(t, first.Header().Get(ReplayedHeader))
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.True(t, mr.Exists("idempotency:7:key-1"))
	assert.False(t, mr.Exists("idempotency:7:key-1:lock"))

	ttl := mr.TTL("idempotency:7:key-1")
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestIdempotency_DifferentKeys(t *testing.T) {
	calls := 0
	router, _ := setupIdempotency(t, func(c *gin.Context) {
		calls++
		response.Success(c, nil)
	})

	postWithKey(router, "key-1")
	postWithKey(router, "key-2")

	assert.Equal(t, 2, calls)
}

func TestIdempotency_FailuresNotCached(t *testing.T) {
	calls := 0
	router, mr := setupIdempotency(t, func(c *gin.Context) {
		calls++
		response.GatewayError(c, "")
	})

	postWithKey(router, "key-1")
	w := postWithKey(router, "key-1")

	assert.Equal(t, 2, calls)
	assert.Empty(t, w.Header().Get(ReplayedHeader))
	assert.False(t, mr.Exists("idempotency:7:key-1"))
}

func TestIdempotency_MissingKey(t *testing.T) {
	calls := 0
	router, _ := setupIdempotency(t, func(c *gin.Context) {
		calls++
		response.Success(c, nil)
	})

	w := postWithKey(router, "")
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeParamError, resp.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotency_InFlight(t *testing.T) {
	calls := 0
	router, mr := setupIdempotency(t, func(c *gin.Context) {
		calls++
		response.Success(c, nil)
	})
	require.NoError(t, mr.Set("idempotency:7:key-1:lock", "1"))

	w := postWithKey(router, "key-1")
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeDuplicateAction, resp.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotency_RedisDownPassesThrough(t *testing.T) {
	calls := 0
	router, mr := setupIdempotency(t, func(c *gin.Context) {
		calls++
		response.Success(c, nil)
	})
	mr.Close()

	w := postWithKey(router, "key-1")
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, 1, calls)
}
