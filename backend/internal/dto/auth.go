package dto

// ── 认证模块 DTO ──

// LoginRequest 编辑账号登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=72"`
}

// TokenResponse 登录成功响应
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // Access Token 有效期（秒）
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// EditorResponse 当前编辑账号
type EditorResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}
