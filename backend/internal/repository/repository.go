package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Class               ClassRepository
	TeacherAvailability TeacherAvailabilityRepository
	Calendar            CalendarRepository
	Schedule            ScheduleRepository
	Assignment          AssignmentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Class:               NewClassRepo(db),
		TeacherAvailability: NewTeacherAvailabilityRepo(db),
		Calendar:            NewCalendarRepo(db),
		Schedule:            NewScheduleRepo(db),
		Assignment:          NewAssignmentRepo(db),
	}
}
