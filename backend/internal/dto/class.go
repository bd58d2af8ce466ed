package dto

import "thunder-scheduler/backend/internal/calendar"

// ── 班级模块 DTO ──

// ConflictEntry 班级某一星期的不可排节次
type ConflictEntry struct {
	Weekday calendar.Weekday `json:"weekday" binding:"weekday"`
	Periods []int            `json:"periods" binding:"required,min=1,dive,min=1,max=20"`
}

// CreateClassRequest 创建班级请求。同一星期出现多次时合并节次。
type CreateClassRequest struct {
	Name       string          `json:"name"        binding:"required,max=100"`
	GradeLevel int             `json:"grade_level" binding:"omitempty,min=0,max=20"`
	Conflicts  []ConflictEntry `json:"conflicts"   binding:"omitempty,dive"`
}

// UpdateClassRequest 更新班级请求，Conflicts 非 nil 时整体替换
type UpdateClassRequest struct {
	Name       *string          `json:"name"        binding:"omitempty,min=1,max=100"`
	GradeLevel *int             `json:"grade_level" binding:"omitempty,min=0,max=20"`
	Conflicts  *[]ConflictEntry `json:"conflicts"   binding:"omitempty,dive"`
}

// ── 响应 ──

// ClassResponse 班级响应
type ClassResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	GradeLevel int             `json:"grade_level"`
	Conflicts  []ConflictEntry `json:"conflicts"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

// ImportClassesResponse CSV 导入结果
type ImportClassesResponse struct {
	Imported int             `json:"imported"`
	Classes  []ClassResponse `json:"classes"`
}
