package dto

import (
	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/validation"
)

// ── 排课模块 DTO ──

// ConstraintsRequest 约束覆盖项，未提供的字段使用配置默认值
type ConstraintsRequest struct {
	MaxClassesPerDay       *int  `json:"max_classes_per_day"       binding:"omitempty,min=1,max=20"`
	MaxClassesPerWeek      *int  `json:"max_classes_per_week"      binding:"omitempty,min=1,max=100"`
	MaxConsecutiveClasses  *int  `json:"max_consecutive_classes"   binding:"omitempty,min=1,max=20"`
	RequireBreakAfterClass *bool `json:"require_break_after_class"`
}

// GenerateScheduleRequest 生成排课方案请求
type GenerateScheduleRequest struct {
	Name          string              `json:"name"            binding:"omitempty,max=100"`
	StartDate     string              `json:"start_date"      binding:"required,datetime=2006-01-02"`
	EndDate       string              `json:"end_date"        binding:"required,datetime=2006-01-02"`
	RotationWeeks int                 `json:"rotation_weeks"  binding:"omitempty,min=1,max=8"`
	PeriodsPerDay int                 `json:"periods_per_day" binding:"omitempty,min=1,max=20"`
	ClassIDs      []string            `json:"class_ids"       binding:"omitempty,dive,required"`
	Constraints   *ConstraintsRequest `json:"constraints"`
}

// AssignmentRequest 单条排课
type AssignmentRequest struct {
	ClassID string           `json:"class_id" binding:"required,max=64"`
	Weekday calendar.Weekday `json:"weekday"  binding:"weekday"`
	Period  int              `json:"period"   binding:"required,min=1"`
	Week    int              `json:"week"     binding:"required,min=1"`
}

// ToCalendar 转换为值类型
func (a AssignmentRequest) ToCalendar() calendar.Assignment {
	return calendar.Assignment{ClassID: a.ClassID, Weekday: a.Weekday, Period: a.Period, Week: a.Week}
}

// AssignmentsToCalendar 批量转换
func AssignmentsToCalendar(reqs []AssignmentRequest) []calendar.Assignment {
	out := make([]calendar.Assignment, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ToCalendar())
	}
	return out
}

// ValidateAssignmentsRequest 校验一组假设排课（整体替换语义）
type ValidateAssignmentsRequest struct {
	Assignments []AssignmentRequest `json:"assignments" binding:"omitempty,dive"`
}

// ReplaceAssignmentsRequest 整体替换方案的排课记录
type ReplaceAssignmentsRequest struct {
	Assignments []AssignmentRequest `json:"assignments" binding:"omitempty,dive"`
	// Version 非空时要求与当前方案版本一致
	Version *int `json:"version" binding:"omitempty,min=1"`
}

// ScheduleListRequest 方案列表查询参数
type ScheduleListRequest struct {
	PaginationRequest
}

// ── 响应 ──

// ScheduleResponse 排课方案详情
type ScheduleResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	StartDate     string                `json:"start_date"`
	EndDate       string                `json:"end_date"`
	RotationWeeks int                   `json:"rotation_weeks"`
	PeriodsPerDay int                   `json:"periods_per_day"`
	Constraints   calendar.Constraints  `json:"constraints"`
	Version       int                   `json:"version"`
	Assignments   []calendar.Assignment `json:"assignments,omitempty"`
	CreatedAt     string                `json:"created_at"`
	UpdatedAt     string                `json:"updated_at"`
}

// GenerateScheduleResponse 生成结果，附带生成后的校验报告
type GenerateScheduleResponse struct {
	Schedule    ScheduleResponse   `json:"schedule"`
	Report      *validation.Report `json:"report"`
	SolveTimeMs int64              `json:"solve_time_ms"`
	Message     string             `json:"message,omitempty"`
}

// InfeasibleDetails 无解时的错误详情
type InfeasibleDetails struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
