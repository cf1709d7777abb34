package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/jwt"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/response"
)

const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// AdminChecker 以资料表中的角色为准
type AdminChecker interface {
	IsAdmin(userID int64) (bool, error)
}

// Auth JWT 认证中间件
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "Authorization header is required")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "Authorization header must use the Bearer scheme")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, err.Error())
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// AdminOnly 需在 Auth 之后使用；token 角色与数据库角色都须为 admin
func AdminOnly(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		if role, _ := c.Get(RoleKey); role != model.RoleAdmin {
			response.PermissionError(c, "Admin access required")
			c.Abort()
			return
		}

		isAdmin, err := checker.IsAdmin(userID)
		if err != nil {
			response.ServerError(c, "")
			c.Abort()
			return
		}
		if !isAdmin {
			response.PermissionError(c, "Admin access required")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}
