// Package client 排课服务的 HTTP 客户端，供调课协调器与命令行工具使用
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/dto"
	"thunder-scheduler/backend/internal/validation"
)

// ErrNoToken 写操作需要 Access Token
var ErrNoToken = errors.New("未设置 Access Token")

// APIError 服务端返回的业务错误
type APIError struct {
	Status    int
	Code      int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("HTTP %d: [%d] %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: [%d] %s (request_id=%s)", e.Status, e.Code, e.Message, e.RequestID)
}

// envelope 与 pkg/response.Response 对应
type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

// Client 排课服务客户端，实现 coordinator.Validator 与 coordinator.Committer
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// Option 可选配置
type Option func(*Client)

// WithToken 设置 Bearer Token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New 创建客户端。单次请求时限由调用方 ctx 控制，timeout 仅作兜底
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken 登录后更新 Token
func (c *Client) SetToken(token string) { c.token = token }

// ── 认证 ──

// Login 编辑账号登录，成功后客户端自动携带返回的 Token
func (c *Client) Login(ctx context.Context, username, password string) (*dto.TokenResponse, error) {
	var out dto.TokenResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Username: username, Password: password}, false, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.AccessToken
	return &out, nil
}

// ── 排课方案 ──

// GetSchedule 读取方案及其排课记录
func (c *Client) GetSchedule(ctx context.Context, scheduleID string) (*dto.ScheduleResponse, error) {
	var out dto.ScheduleResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/schedules/"+url.PathEscape(scheduleID), nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate 对整套候选排课做全量校验
func (c *Client) Validate(ctx context.Context, scheduleID string, assignments []calendar.Assignment) (*validation.Report, error) {
	var out validation.Report
	body := dto.ValidateAssignmentsRequest{Assignments: toRequests(assignments)}
	if err := c.do(ctx, http.MethodPost, "/api/v1/schedules/"+url.PathEscape(scheduleID)+"/validate", body, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceAssignments 整体替换方案的排课记录
func (c *Client) ReplaceAssignments(ctx context.Context, scheduleID string, assignments []calendar.Assignment) error {
	body := dto.ReplaceAssignmentsRequest{Assignments: toRequests(assignments)}
	return c.do(ctx, http.MethodPut, "/api/v1/schedules/"+url.PathEscape(scheduleID)+"/assignments", body, true, nil)
}

func toRequests(as []calendar.Assignment) []dto.AssignmentRequest {
	out := make([]dto.AssignmentRequest, 0, len(as))
	for _, a := range as {
		out = append(out, dto.AssignmentRequest{ClassID: a.ClassID, Weekday: a.Weekday, Period: a.Period, Week: a.Week})
	}
	return out
}

// do 发送请求并解开统一响应结构；out 为 nil 时忽略 data
func (c *Client) do(ctx context.Context, method, path string, in interface{}, auth bool, out interface{}) error {
	if auth && c.token == "" {
		return ErrNoToken
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("请求完成",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Code: -1, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode >= 300 || env.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message, RequestID: env.RequestID}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("解码响应失败: %w", err)
		}
	}
	return nil
}
