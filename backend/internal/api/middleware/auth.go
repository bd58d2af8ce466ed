package middleware

import (
	"errors"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5/request"

	"thunder-scheduler/backend/pkg/jwt"
	"thunder-scheduler/backend/pkg/response"
)

// JWTAuth 校验 Authorization: Bearer <token>，通过后把编辑账号与角色写入上下文（username / role）。
// 读接口不挂此中间件。
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := request.BearerExtractor{}.ExtractToken(c.Request)
		if err != nil {
			response.Unauthorized(c, 10002, "缺少 Bearer Token")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(raw)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			response.Unauthorized(c, 10002, "Token 已过期，请重新登录")
			c.Abort()
			return
		case err != nil:
			response.Unauthorized(c, 10002, "Token 无效")
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RoleAuth 要求上下文中的角色属于 allowedRoles，须挂在 JWTAuth 之后
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get("role")
		if !ok {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}
		if s, _ := role.(string); !slices.Contains(allowedRoles, s) {
			response.Forbidden(c, 10003, "当前角色无权修改排课")
			c.Abort()
			return
		}
		c.Next()
	}
}

// EditorOnly 写接口统一使用
func EditorOnly() gin.HandlerFunc {
	return RoleAuth(jwt.RoleEditor)
}
