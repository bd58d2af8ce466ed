package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"thunder-scheduler/backend/internal/dto"
	"thunder-scheduler/backend/internal/service"
	"thunder-scheduler/backend/pkg/response"
)

// AvailabilityHandler 教师停课模块 HTTP 处理器
type AvailabilityHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewAvailabilityHandler 创建 AvailabilityHandler
func NewAvailabilityHandler(availabilitySvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilitySvc: availabilitySvc}
}

// List 按日期区间查询停课记录
// GET /api/v1/teacher-availability?start=&end=
func (h *AvailabilityHandler) List(c *gin.Context) {
	var req dto.ListAvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	records, err := h.availabilitySvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}
	response.OK(c, gin.H{"list": records})
}

// Create 新增停课记录
// POST /api/v1/teacher-availability
func (h *AvailabilityHandler) Create(c *gin.Context) {
	editor, ok := MustGetUsername(c)
	if !ok {
		return
	}

	var req dto.CreateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	record, err := h.availabilitySvc.Create(c.Request.Context(), &req, editor)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}
	response.Created(c, record)
}

// Delete 删除停课记录
// DELETE /api/v1/teacher-availability/:id
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	if err := h.availabilitySvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleAvailabilityError(c, err)
		return
	}
	response.OK(c, nil)
}

// ImportICS 导入教师日历
// POST /api/v1/teacher-availability/import-ics
//
// 支持两种方式：
//   - 文件上传: multipart/form-data, field="file"，可选 start / end 表单字段
//   - URL 导入: application/json, body={"url": "...", "start": "...", "end": "..."}
func (h *AvailabilityHandler) ImportICS(c *gin.Context) {
	editor, ok := MustGetUsername(c)
	if !ok {
		return
	}

	// 尝试文件上传方式
	file, _, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()
		resp, err := h.availabilitySvc.ImportICS(c.Request.Context(), file, c.PostForm("start"), c.PostForm("end"), editor)
		if err != nil {
			h.handleAvailabilityError(c, err)
			return
		}
		response.Created(c, resp)
		return
	}

	// 尝试 URL 方式
	var req dto.ImportICSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13000, "请上传 ICS 文件或提供 ICS URL")
		return
	}

	resp, err := h.availabilitySvc.ImportICSURL(c.Request.Context(), &req, editor)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}
	response.Created(c, resp)
}

// handleAvailabilityError 统一处理教师停课模块业务错误
func (h *AvailabilityHandler) handleAvailabilityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAvailabilityNotFound):
		response.NotFound(c, 13101, "停课记录不存在")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 13102, "日期格式无效，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 13103, "结束日期不能早于开始日期")
	case errors.Is(err, service.ErrICSParseFailed):
		response.ErrorWithDetails(c, http.StatusBadRequest, 13104, "ICS 格式解析失败", err.Error())
	case errors.Is(err, service.ErrICSFetchFailed):
		response.ErrorWithDetails(c, http.StatusBadRequest, 13105, "ICS URL 获取失败", err.Error())
	case errors.Is(err, service.ErrPeriodOutOfRange):
		response.ErrorWithDetails(c, http.StatusBadRequest, 13106, "节次超出范围", err.Error())
	default:
		response.InternalError(c)
	}
}
