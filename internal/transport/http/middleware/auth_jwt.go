package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/auth"
	"shelf-taught/internal/transport/http/response"
)

const (
	KeyClaims = "claims"
	KeyUserID = "userId"
	KeyRole   = "role"
)

func setClaims(c *gin.Context, cl *auth.Claims) {
	c.Set(KeyClaims, cl)
	c.Set(KeyUserID, cl.UserID)
	c.Set(KeyRole, cl.Role)
}

// Authenticate 要求有效的 Bearer 令牌
func Authenticate(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := auth.ExtractBearer(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, apperr.Unauthenticated(err.Error()))
			return
		}
		claims, err := j.Parse(tok)
		if err != nil {
			response.Error(c, err)
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth 令牌缺失或无效时按匿名处理
func OptionalAuth(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok, err := auth.ExtractBearer(c.GetHeader("Authorization")); err == nil {
			if claims, err := j.Parse(tok); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole 需在 Authenticate 之后使用
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(KeyUserID) == "" {
			response.Error(c, apperr.Unauthenticated("Authentication required"))
			return
		}
		if !slices.Contains(roles, c.GetString(KeyRole)) {
			response.Error(c, apperr.Forbidden("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) string { return c.GetString(KeyUserID) }
