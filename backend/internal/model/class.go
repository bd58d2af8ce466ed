package model

import "thunder-scheduler/backend/internal/calendar"

// Class 班级，对应 classes
type Class struct {
	ClassID    string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_id"`
	Name       string `gorm:"type:varchar(100);not null;uniqueIndex"        json:"name"`
	GradeLevel int    `gorm:"type:smallint;not null;default:0"              json:"grade_level"`
	BaseModel

	// 关联
	Conflicts []ClassConflict `gorm:"foreignKey:ClassID;references:ClassID" json:"conflicts,omitempty"`
}

func (Class) TableName() string { return "classes" }

// ToCalendar 转换为校验使用的值类型
func (c Class) ToCalendar() calendar.Class {
	out := calendar.Class{ID: c.ClassID, Name: c.Name, GradeLevel: c.GradeLevel}
	for _, cc := range c.Conflicts {
		out.Conflicts = append(out.Conflicts, cc.ToCalendar())
	}
	return out
}

// ClassConflict 班级不可排时段，对应 class_conflicts，(class_id, weekday) 唯一
type ClassConflict struct {
	ConflictID string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"        json:"conflict_id"`
	ClassID    string           `gorm:"type:uuid;not null;uniqueIndex:uq_class_conflict_day"  json:"class_id"`
	Weekday    calendar.Weekday `gorm:"type:varchar(10);not null;uniqueIndex:uq_class_conflict_day" json:"weekday"`
	Periods    IntArray         `gorm:"type:int[];not null"                                   json:"periods"`
	BaseModel
}

func (ClassConflict) TableName() string { return "class_conflicts" }

// ToCalendar 转换为值类型
func (cc ClassConflict) ToCalendar() calendar.ClassConflict {
	return calendar.ClassConflict{ClassID: cc.ClassID, Weekday: cc.Weekday, Periods: []int(cc.Periods)}
}
