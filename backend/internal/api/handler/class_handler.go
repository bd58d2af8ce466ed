package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"thunder-scheduler/backend/internal/dto"
	"thunder-scheduler/backend/internal/service"
	"thunder-scheduler/backend/pkg/response"
)

// ClassHandler 班级模块 HTTP 处理器
type ClassHandler struct {
	classSvc service.ClassService
}

// NewClassHandler 创建 ClassHandler
func NewClassHandler(classSvc service.ClassService) *ClassHandler {
	return &ClassHandler{classSvc: classSvc}
}

// List 班级列表（含不可排时段）
// GET /api/v1/classes
func (h *ClassHandler) List(c *gin.Context) {
	classes, err := h.classSvc.List(c.Request.Context())
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.OK(c, gin.H{"list": classes})
}

// Get 班级详情
// GET /api/v1/classes/:id
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.OK(c, class)
}

// Create 创建班级
// POST /api/v1/classes
func (h *ClassHandler) Create(c *gin.Context) {
	editor, ok := MustGetUsername(c)
	if !ok {
		return
	}

	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	class, err := h.classSvc.Create(c.Request.Context(), &req, editor)
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.Created(c, class)
}

// Update 更新班级
// PUT /api/v1/classes/:id
func (h *ClassHandler) Update(c *gin.Context) {
	editor, ok := MustGetUsername(c)
	if !ok {
		return
	}

	var req dto.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	class, err := h.classSvc.Update(c.Request.Context(), c.Param("id"), &req, editor)
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.OK(c, class)
}

// Delete 删除班级
// DELETE /api/v1/classes/:id
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleClassError(c, err)
		return
	}
	response.OK(c, nil)
}

// Import CSV 导入班级不可排时段
// POST /api/v1/classes/import
//
// 支持两种方式：
//   - 文件上传: multipart/form-data, field="file"
//   - 原始内容: text/csv 请求体
func (h *ClassHandler) Import(c *gin.Context) {
	editor, ok := MustGetUsername(c)
	if !ok {
		return
	}

	var body io.Reader
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		body = file
	} else if c.ContentType() == "multipart/form-data" {
		response.BadRequest(c, 12107, "请上传 CSV 文件")
		return
	} else {
		body = c.Request.Body
	}

	result, err := h.classSvc.Import(c.Request.Context(), body, editor)
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.Created(c, result)
}

// handleClassError 统一处理班级模块业务错误
func (h *ClassHandler) handleClassError(c *gin.Context, err error) {
	var importErr *service.ImportError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &importErr):
		response.ErrorWithDetails(c, http.StatusBadRequest, 12104, "CSV 内容校验失败", importErr.Errors)
	case errors.As(err, &tooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 12101, "班级不存在")
	case errors.Is(err, service.ErrClassNameExists):
		response.Conflict(c, 12102, "班级名称已存在")
	case errors.Is(err, service.ErrPeriodOutOfRange):
		response.ErrorWithDetails(c, http.StatusBadRequest, 12103, "节次超出范围", err.Error())
	case errors.Is(err, service.ErrImportEmpty):
		response.BadRequest(c, 12105, "导入内容中没有班级")
	case errors.Is(err, service.ErrInvalidWeekdayData):
		response.BadRequest(c, 12106, "星期无效，仅支持 MONDAY 至 FRIDAY")
	default:
		response.InternalError(c)
	}
}
