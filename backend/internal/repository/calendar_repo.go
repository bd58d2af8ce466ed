package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"thunder-scheduler/backend/internal/model"
)

// Calendar 校验所需的日历数据：全部班级（含不可排时段）与区间内的教师停课
type Calendar struct {
	Classes             []model.Class
	TeacherAvailability []model.TeacherAvailability
}

// CalendarRepository 日历数据只读访问
type CalendarRepository interface {
	LoadCalendar(ctx context.Context, start, end time.Time) (*Calendar, error)
}

type calendarRepo struct {
	classes      ClassRepository
	availability TeacherAvailabilityRepository
}

// NewCalendarRepo 组合班级与教师停课仓储
func NewCalendarRepo(db *gorm.DB) CalendarRepository {
	return &calendarRepo{classes: NewClassRepo(db), availability: NewTeacherAvailabilityRepo(db)}
}

func (r *calendarRepo) LoadCalendar(ctx context.Context, start, end time.Time) (*Calendar, error) {
	classes, err := r.classes.List(ctx)
	if err != nil {
		return nil, err
	}
	availability, err := r.availability.ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &Calendar{Classes: classes, TeacherAvailability: availability}, nil
}
