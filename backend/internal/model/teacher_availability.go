package model

import (
	"time"

	"thunder-scheduler/backend/internal/calendar"
)

// TeacherAvailability 教师停课记录，对应 teacher_availability
type TeacherAvailability struct {
	AvailabilityID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"availability_id"`
	Date           time.Time `gorm:"type:date;not null;index"                       json:"date"`
	BlockedPeriods IntArray  `gorm:"type:int[];not null"                            json:"blocked_periods"`
	Reason         string    `gorm:"type:varchar(200)"                              json:"reason,omitempty"`
	Source         string    `gorm:"type:varchar(20);not null;default:'manual'"     json:"source"` // manual | ics
	BaseModel
}

func (TeacherAvailability) TableName() string { return "teacher_availability" }

// ToCalendar 转换为值类型
func (t TeacherAvailability) ToCalendar() calendar.TeacherAvailability {
	return calendar.TeacherAvailability{Date: t.Date, BlockedPeriods: []int(t.BlockedPeriods), Reason: t.Reason}
}
