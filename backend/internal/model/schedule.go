package model

import (
	"time"

	"thunder-scheduler/backend/internal/calendar"
)

// Schedule 排课方案，对应 schedules
type Schedule struct {
	ScheduleID             string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	Name                   string    `gorm:"type:varchar(100);not null;default:''"          json:"name"`
	StartDate              time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate                time.Time `gorm:"type:date;not null"                             json:"end_date"`
	RotationWeeks          int       `gorm:"type:smallint;not null;default:1"               json:"rotation_weeks"`
	PeriodsPerDay          int       `gorm:"type:smallint;not null;default:8"               json:"periods_per_day"`
	MaxClassesPerDay       int       `gorm:"type:smallint;not null"                         json:"max_classes_per_day"`
	MaxClassesPerWeek      int       `gorm:"type:smallint;not null"                         json:"max_classes_per_week"`
	MaxConsecutiveClasses  int       `gorm:"type:smallint;not null"                         json:"max_consecutive_classes"`
	RequireBreakAfterClass bool      `gorm:"not null;default:true"                          json:"require_break_after_class"`
	VersionedModel

	// 关联
	Assignments []Assignment `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"assignments,omitempty"`
}

func (Schedule) TableName() string { return "schedules" }

// Constraints 约束值类型
func (s Schedule) Constraints() calendar.Constraints {
	return calendar.Constraints{
		MaxClassesPerDay:       s.MaxClassesPerDay,
		MaxClassesPerWeek:      s.MaxClassesPerWeek,
		MaxConsecutiveClasses:  s.MaxConsecutiveClasses,
		RequireBreakAfterClass: s.RequireBreakAfterClass,
	}
}

// SetConstraints 写入约束
func (s *Schedule) SetConstraints(c calendar.Constraints) {
	s.MaxClassesPerDay = c.MaxClassesPerDay
	s.MaxClassesPerWeek = c.MaxClassesPerWeek
	s.MaxConsecutiveClasses = c.MaxConsecutiveClasses
	s.RequireBreakAfterClass = c.RequireBreakAfterClass
}

// ToCalendar 转换为值类型；assignments 为 nil 时使用已加载的关联
func (s Schedule) ToCalendar(assignments []calendar.Assignment) calendar.Schedule {
	if assignments == nil {
		assignments = AssignmentsToCalendar(s.Assignments)
	}
	return calendar.Schedule{
		ID:            s.ScheduleID,
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
		RotationWeeks: s.RotationWeeks,
		Constraints:   s.Constraints(),
		Assignments:   assignments,
	}
}

// Assignment 排课记录，对应 assignments。
// 不对时间格建唯一索引：冲突的排课可以保存，由校验报告指出。
type Assignment struct {
	AssignmentID string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	ScheduleID   string           `gorm:"type:uuid;not null;index"                       json:"schedule_id"`
	ClassID      string           `gorm:"type:uuid;not null"                             json:"class_id"`
	Weekday      calendar.Weekday `gorm:"type:varchar(10);not null"                      json:"weekday"`
	Period       int              `gorm:"type:smallint;not null"                         json:"period"`
	Week         int              `gorm:"type:smallint;not null"                         json:"week"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (Assignment) TableName() string { return "assignments" }

// AssignmentsToCalendar 转换为值类型
func AssignmentsToCalendar(rows []Assignment) []calendar.Assignment {
	out := make([]calendar.Assignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, calendar.Assignment{ClassID: r.ClassID, Weekday: r.Weekday, Period: r.Period, Week: r.Week})
	}
	return out
}

// AssignmentsFromCalendar 转换为待写入的行
func AssignmentsFromCalendar(scheduleID string, as []calendar.Assignment) []Assignment {
	out := make([]Assignment, 0, len(as))
	for _, a := range as {
		out = append(out, Assignment{ScheduleID: scheduleID, ClassID: a.ClassID, Weekday: a.Weekday, Period: a.Period, Week: a.Week})
	}
	return out
}
