package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/Aadiprofessional/edusmart-server/internal/pkg/response"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "X-Idempotency-Replayed"

	maxIdempotencyKeyLen = 128
	inFlightTTL          = time.Minute
)

type cachedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// bodyRecorder 记录响应体以便缓存
type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Idempotency 按用户 + Idempotency-Key 缓存成功响应，重复请求直接回放。
// 需在 Auth 之后使用；只缓存业务码为成功的响应，失败可带同一个 key 重试。
func Idempotency(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			response.ParamError(c, IdempotencyKeyHeader+" header is required")
			c.Abort()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			response.ParamError(c, IdempotencyKeyHeader+" header is too long")
			c.Abort()
			return
		}

		userID, _ := GetUserID(c)
		cacheKey := fmt.Sprintf("idempotency:%d:%s", userID, key)
		lockKey := cacheKey + ":lock"
		ctx := c.Request.Context()

		if replay(ctx, c, rdb, cacheKey) {
			return
		}

		acquired, err := rdb.SetNX(ctx, lockKey, 1, inFlightTTL).Result()
		if err != nil {
			log.Printf("Idempotency: redis unavailable, passing request through: %v", err)
			c.Next()
			return
		}
		if !acquired {
			response.DuplicateError(c, "A request with this idempotency key is already in progress")
			c.Abort()
			return
		}
		defer rdb.Del(context.Background(), lockKey)

		recorder := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder
		c.Next()

		if !cacheable(recorder.Status(), recorder.body.Bytes()) {
			return
		}

		data, err := json.Marshal(cachedResponse{
			StatusCode:  recorder.Status(),
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.String(),
		})
		if err != nil {
			return
		}
		if err := rdb.Set(context.Background(), cacheKey, data, ttl).Err(); err != nil {
			log.Printf("Idempotency: failed to cache response for key %s: %v", key, err)
		}
	}
}

func replay(ctx context.Context, c *gin.Context, rdb *redis.Client, cacheKey string) bool {
	cached, err := rdb.Get(ctx, cacheKey).Result()
	if err != nil {
		return false
	}

	var resp cachedResponse
	if err := json.Unmarshal([]byte(cached), &resp); err != nil {
		return false
	}

	c.Header(ReplayedHeader, "true")
	c.Data(resp.StatusCode, resp.ContentType, []byte(resp.Body))
	c.Abort()
	return true
}

func cacheable(status int, body []byte) bool {
	if status != http.StatusOK {
		return false
	}
	var envelope struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return envelope.Code == response.CodeSuccess
}
