package validation

import (
	"time"

	"thunder-scheduler/backend/internal/calendar"
)

// Input 校验所需的完整上下文。分类器只读，不修改。
type Input struct {
	StartDate           time.Time
	EndDate             time.Time
	RotationWeeks       int
	Assignments         []calendar.Assignment
	ClassConflicts      []calendar.ClassConflict
	TeacherAvailability []calendar.TeacherAvailability
	Constraints         calendar.Constraints
	NumClasses          int
}

// NewInput 由排课方案、班级及教师停课记录组装校验输入。
// 班级的不可排时段在此合并去重。
func NewInput(schedule calendar.Schedule, classes []calendar.Class, availability []calendar.TeacherAvailability) *Input {
	var conflicts []calendar.ClassConflict
	for _, c := range classes {
		for _, cc := range c.Conflicts {
			if cc.ClassID == "" {
				cc.ClassID = c.ID
			}
			conflicts = append(conflicts, cc)
		}
	}
	return &Input{
		StartDate:           schedule.StartDate,
		EndDate:             schedule.EndDate,
		RotationWeeks:       schedule.RotationWeeks,
		Assignments:         schedule.Assignments,
		ClassConflicts:      calendar.MergeConflicts(conflicts),
		TeacherAvailability: availability,
		Constraints:         schedule.Constraints,
		NumClasses:          len(classes),
	}
}
