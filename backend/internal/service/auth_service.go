package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"thunder-scheduler/backend/config"
	"thunder-scheduler/backend/internal/dto"
	"thunder-scheduler/backend/pkg/jwt"
)

var ErrInvalidCredentials = errors.New("用户名或密码错误")

// AuthService 认证业务接口。编辑账号来自配置 auth.editors。
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
}

type authService struct {
	editors map[string]string // username → bcrypt hash
	jwtMgr  *jwt.Manager
	logger  *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(cfg *config.Config, jwtMgr *jwt.Manager, logger *zap.Logger) AuthService {
	editors := make(map[string]string, len(cfg.Auth.Editors))
	for _, e := range cfg.Auth.Editors {
		editors[e.Username] = e.PasswordHash
	}
	return &authService{editors: editors, jwtMgr: jwtMgr, logger: logger}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查找账号
	hash, ok := s.editors[req.Username]
	if !ok {
		return nil, ErrInvalidCredentials
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 签发 Access Token
	token, err := s.jwtMgr.GenerateAccessToken(req.Username, jwt.RoleEditor)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("编辑账号登录", zap.String("username", req.Username))

	return &dto.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		Username:    req.Username,
		Role:        jwt.RoleEditor,
	}, nil
}

// HashPassword 生成 bcrypt 哈希，供配置 auth.editors 使用
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("密码长度不能少于 8 位")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
