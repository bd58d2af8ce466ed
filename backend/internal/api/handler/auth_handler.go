package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"thunder-scheduler/backend/internal/dto"
	"thunder-scheduler/backend/internal/service"
	"thunder-scheduler/backend/pkg/response"
)

// AuthHandler 编辑账号认证
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login 校验配置中的编辑账号并签发 Access Token
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	token, err := h.authSvc.Login(c.Request.Context(), &req)
	switch {
	case err == nil:
		response.OK(c, token)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, 11001, err.Error())
	default:
		response.InternalError(c)
	}
}

// Me 当前 Token 对应的编辑账号
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	username, ok := MustGetUsername(c)
	if !ok {
		return
	}
	response.OK(c, dto.EditorResponse{Username: username, Role: c.GetString("role")})
}
