package validation

import (
	"sort"

	"thunder-scheduler/backend/internal/calendar"
)

// Kind 违规类型
type Kind string

const (
	KindSlotExclusivity    Kind = "slot_exclusivity"
	KindClassConflict      Kind = "class_conflict"
	KindTeacherUnavailable Kind = "teacher_unavailable"
	KindDailyLoad          Kind = "daily_load"
	KindWeeklyLoad         Kind = "weekly_load"
	KindConsecutiveRun     Kind = "consecutive_run"
	KindBreakRequired      Kind = "break_required"

	// KindMoveUnconfirmed 由调课协调器在校验超时或不可达时生成，不属于任何分类器
	KindMoveUnconfirmed Kind = "move_unconfirmed"
)

// Violation 一条规则违规。只作为数据返回，从不持久化。
// 日负载违规 Period 为 0；周负载违规 Weekday 与 Period 均为 0。
type Violation struct {
	Kind     Kind             `json:"kind"`
	Message  string           `json:"message"`
	ClassID  string           `json:"class_id,omitempty"`
	ClassIDs []string         `json:"class_ids,omitempty"`
	Weekday  calendar.Weekday `json:"weekday,omitempty"`
	Period   int              `json:"period,omitempty"`
	Week     int              `json:"week,omitempty"`
	Periods  []int            `json:"periods,omitempty"`
	Date     string           `json:"date,omitempty"`
	Count    int              `json:"count,omitempty"`
	Limit    int              `json:"limit,omitempty"`
}

// Report 单次校验结果
type Report struct {
	Valid          bool        `json:"valid"`
	Violations     []Violation `json:"violations"`
	NumAssignments int         `json:"num_assignments"`
	NumClasses     int         `json:"num_classes"`
}

// KindCounts 按违规类型计数
func (r *Report) KindCounts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, v := range r.Violations {
		counts[v.Kind]++
	}
	return counts
}

// SortViolations 全序排序：星期 → 节次 → 周次 → 班级，再以类型、描述兜底
func SortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Message < b.Message
	})
}
