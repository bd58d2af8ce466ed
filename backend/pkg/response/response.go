// Package response 统一 JSON 响应信封：code 为 0 表示成功，非 0 为业务错误码。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构。RequestID 取自 RequestID 中间件，便于按日志追查。
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 分页列表
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

func write(c *gin.Context, status int, body Response) {
	body.RequestID = c.GetString("request_id")
	c.JSON(status, body)
}

// ── 成功 ──

func OK(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Response{Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, Response{Message: "success", Data: data})
}

// OKPage 分页列表，total_pages 向上取整
func OKPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	var pages int
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	OK(c, PageData{
		List:       list,
		Pagination: Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages},
	})
}

// ── 失败 ──

func Error(c *gin.Context, httpStatus, code int, message string) {
	write(c, httpStatus, Response{Code: code, Message: message})
}

// ErrorWithDetails details 可为字段错误列表、违规列表等结构化数据
func ErrorWithDetails(c *gin.Context, httpStatus, code int, message string, details interface{}) {
	write(c, httpStatus, Response{Code: code, Message: message, Details: details})
}

func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// Unprocessable 422，用于排课不可行等需要附带违规详情的场景
func Unprocessable(c *gin.Context, code int, message string, details interface{}) {
	ErrorWithDetails(c, http.StatusUnprocessableEntity, code, message, details)
}

func TooManyRequests(c *gin.Context, code int, message string) {
	Error(c, http.StatusTooManyRequests, code, message)
}

// InternalError 500，不向调用方暴露内部错误信息
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, 50000, "服务器内部错误")
}
