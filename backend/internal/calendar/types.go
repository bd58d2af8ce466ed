package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DefaultPeriodsPerDay 每日默认节次数
const DefaultPeriodsPerDay = 8

var (
	ErrInvalidPeriod      = errors.New("节次超出范围")
	ErrInvalidWeek        = errors.New("轮换周次超出范围")
	ErrInvalidConstraints = errors.New("排课约束参数无效")
	ErrInvalidDateRange   = errors.New("结束日期早于开始日期")
)

// ── 时间格 ──

// Slot 时间格，(星期, 节次, 轮换周) 三元组唯一标识一个可排课位置
type Slot struct {
	Weekday Weekday `json:"weekday"`
	Period  int     `json:"period"`
	Week    int     `json:"week"`
}

func (s Slot) String() string {
	return fmt.Sprintf("%s-%d-W%d", s.Weekday, s.Period, s.Week)
}

// Less 按 星期 → 节次 → 周次 排序
func (s Slot) Less(o Slot) bool {
	if s.Weekday != o.Weekday {
		return s.Weekday < o.Weekday
	}
	if s.Period != o.Period {
		return s.Period < o.Period
	}
	return s.Week < o.Week
}

// ── 排课记录 ──

// Assignment 某班级占用某时间格
type Assignment struct {
	ClassID string  `json:"class_id"`
	Weekday Weekday `json:"weekday"`
	Period  int     `json:"period"`
	Week    int     `json:"week"`
}

// Slot 返回记录所占时间格
func (a Assignment) Slot() Slot {
	return Slot{Weekday: a.Weekday, Period: a.Period, Week: a.Week}
}

// Validate 校验星期、节次与周次是否落在排课网格内
func (a Assignment) Validate(periodsPerDay, rotationWeeks int) error {
	if !a.Weekday.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, int(a.Weekday))
	}
	if a.Period < 1 || a.Period > periodsPerDay {
		return fmt.Errorf("%w: 第%d节（共%d节）", ErrInvalidPeriod, a.Period, periodsPerDay)
	}
	if a.Week < 1 || a.Week > rotationWeeks {
		return fmt.Errorf("%w: 第%d周（共%d周）", ErrInvalidWeek, a.Week, rotationWeeks)
	}
	return nil
}

// SortAssignments 按 时间格 → 班级 排序，结果稳定
func SortAssignments(as []Assignment) {
	sort.SliceStable(as, func(i, j int) bool {
		si, sj := as[i].Slot(), as[j].Slot()
		if si != sj {
			return si.Less(sj)
		}
		return as[i].ClassID < as[j].ClassID
	})
}

// CloneAssignments 深拷贝
func CloneAssignments(as []Assignment) []Assignment {
	if as == nil {
		return nil
	}
	out := make([]Assignment, len(as))
	copy(out, as)
	return out
}

// ── 不可排时段 ──

// ClassConflict 班级在某星期不可排的节次，与周次无关
type ClassConflict struct {
	ClassID string  `json:"class_id"`
	Weekday Weekday `json:"weekday"`
	Periods []int   `json:"periods"`
}

// TeacherAvailability 教师在某具体日期的停课节次
type TeacherAvailability struct {
	Date           time.Time `json:"date"`
	BlockedPeriods []int     `json:"blocked_periods"`
	Reason         string    `json:"reason,omitempty"`
}

// Blocks 该日期是否封锁了指定节次
func (t TeacherAvailability) Blocks(period int) bool {
	for _, p := range t.BlockedPeriods {
		if p == period {
			return true
		}
	}
	return false
}

// ── 约束 ──

// Constraints 负载类约束
type Constraints struct {
	MaxClassesPerDay       int  `json:"max_classes_per_day"`
	MaxClassesPerWeek      int  `json:"max_classes_per_week"`
	MaxConsecutiveClasses  int  `json:"max_consecutive_classes"`
	RequireBreakAfterClass bool `json:"require_break_after_class"`
}

// DefaultConstraints 默认约束 4 / 16 / 2 / 需要间隔
func DefaultConstraints() Constraints {
	return Constraints{
		MaxClassesPerDay:       4,
		MaxClassesPerWeek:      16,
		MaxConsecutiveClasses:  2,
		RequireBreakAfterClass: true,
	}
}

// Validate 三个上限均须为正数
func (c Constraints) Validate() error {
	if c.MaxClassesPerDay <= 0 || c.MaxClassesPerWeek <= 0 || c.MaxConsecutiveClasses <= 0 {
		return fmt.Errorf("%w: 每日=%d 每周=%d 连续=%d", ErrInvalidConstraints,
			c.MaxClassesPerDay, c.MaxClassesPerWeek, c.MaxConsecutiveClasses)
	}
	return nil
}

// ── 聚合 ──

// Class 班级及其不可排时段
type Class struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	GradeLevel int             `json:"grade_level"`
	Conflicts  []ClassConflict `json:"conflicts,omitempty"`
}

// Schedule 一个轮换排课方案
type Schedule struct {
	ID            string       `json:"id"`
	StartDate     time.Time    `json:"start_date"`
	EndDate       time.Time    `json:"end_date"`
	RotationWeeks int          `json:"rotation_weeks"`
	Constraints   Constraints  `json:"constraints"`
	Assignments   []Assignment `json:"assignments"`
}
