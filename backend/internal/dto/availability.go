package dto

// ── 教师停课模块 DTO ──

// ListAvailabilityRequest 按日期区间查询，边界为空表示不限
type ListAvailabilityRequest struct {
	Start string `form:"start" binding:"omitempty,datetime=2006-01-02"`
	End   string `form:"end"   binding:"omitempty,datetime=2006-01-02"`
}

// CreateAvailabilityRequest 新增停课请求
type CreateAvailabilityRequest struct {
	Date           string `json:"date"            binding:"required,datetime=2006-01-02"`
	BlockedPeriods []int  `json:"blocked_periods" binding:"required,min=1,dive,min=1,max=20"`
	Reason         string `json:"reason"          binding:"omitempty,max=200"`
}

// ImportICSRequest ICS 导入请求（URL 方式）
type ImportICSRequest struct {
	URL   string `json:"url"   binding:"required,url"`
	Start string `json:"start" binding:"omitempty,datetime=2006-01-02"`
	End   string `json:"end"   binding:"omitempty,datetime=2006-01-02"`
}

// ── 响应 ──

// AvailabilityResponse 停课记录响应
type AvailabilityResponse struct {
	ID             string `json:"id"`
	Date           string `json:"date"`
	Weekday        string `json:"weekday,omitempty"` // 周末日期为空
	BlockedPeriods []int  `json:"blocked_periods"`
	Reason         string `json:"reason,omitempty"`
	Source         string `json:"source"`
}

// ImportICSResponse ICS 导入结果
type ImportICSResponse struct {
	Imported int                    `json:"imported"`
	Skipped  int                    `json:"skipped"`
	Records  []AvailabilityResponse `json:"records"`
}
