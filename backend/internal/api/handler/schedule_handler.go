package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"thunder-scheduler/backend/internal/dto"
	"thunder-scheduler/backend/internal/service"
	"thunder-scheduler/backend/internal/solver"
	"thunder-scheduler/backend/pkg/response"
)

// ScheduleHandler 排课模块 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// Generate 自动生成排课方案
// POST /api/v1/schedules/generate
func (h *ScheduleHandler) Generate(c *gin.Context) {
	editor, ok := MustGetUsername(c)
	if !ok {
		return
	}

	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.scheduleSvc.Generate(c.Request.Context(), &req, editor)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.Created(c, result)
}

// List 方案列表
// GET /api/v1/schedules
func (h *ScheduleHandler) List(c *gin.Context) {
	var req dto.ScheduleListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	list, total, err := h.scheduleSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get 方案详情（含排课记录）
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.scheduleSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OK(c, schedule)
}

// Delete 删除方案
// DELETE /api/v1/schedules/:id
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.scheduleSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OK(c, nil)
}

// Validate 校验一组假设排课，不落库
// POST /api/v1/schedules/:id/validate
func (h *ScheduleHandler) Validate(c *gin.Context) {
	var req dto.ValidateAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.scheduleSvc.Validate(c.Request.Context(), c.Param("id"), dto.AssignmentsToCalendar(req.Assignments))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OK(c, report)
}

// ValidateStored 校验方案当前保存的排课
// GET /api/v1/schedules/:id/validate
func (h *ScheduleHandler) ValidateStored(c *gin.Context) {
	report, err := h.scheduleSvc.ValidateStored(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OK(c, report)
}

// ReplaceAssignments 整体替换方案的排课记录
// PUT /api/v1/schedules/:id/assignments
func (h *ScheduleHandler) ReplaceAssignments(c *gin.Context) {
	editor, ok := MustGetUsername(c)
	if !ok {
		return
	}

	var req dto.ReplaceAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	schedule, err := h.scheduleSvc.ReplaceAssignments(c.Request.Context(), c.Param("id"), &req, editor)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OK(c, schedule)
}

// handleScheduleError 统一处理排课模块业务错误
func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	var infeasible *service.InfeasibleError
	switch {
	case errors.As(err, &infeasible):
		response.Unprocessable(c, 14201, "在当前约束下无法生成排课方案", dto.InfeasibleDetails{
			Status:  string(solver.StatusInfeasible),
			Message: infeasible.Message,
		})
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 14101, "排课方案不存在")
	case errors.Is(err, service.ErrInvalidScheduleRequest):
		response.BadRequest(c, 14102, err.Error())
	case errors.Is(err, service.ErrInvalidAssignment):
		response.BadRequest(c, 14103, err.Error())
	case errors.Is(err, service.ErrNoClasses):
		response.BadRequest(c, 14104, "没有可排的班级")
	case errors.Is(err, service.ErrScheduleVersionConflict):
		response.Conflict(c, 14105, "排课方案已被修改，请刷新后重试")
	case errors.Is(err, service.ErrClassNotFound):
		response.BadRequest(c, 14106, err.Error())
	default:
		response.InternalError(c)
	}
}
