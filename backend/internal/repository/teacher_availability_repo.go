package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"thunder-scheduler/backend/internal/model"
)

// TeacherAvailabilityRepository 教师停课数据访问接口
type TeacherAvailabilityRepository interface {
	// ListByDateRange start/end 为零值时不限制对应边界
	ListByDateRange(ctx context.Context, start, end time.Time) ([]model.TeacherAvailability, error)
	GetByID(ctx context.Context, id string) (*model.TeacherAvailability, error)
	Create(ctx context.Context, t *model.TeacherAvailability) error
	BatchCreate(ctx context.Context, records []model.TeacherAvailability) error
	Delete(ctx context.Context, id string) error
}

type teacherAvailabilityRepo struct {
	db *gorm.DB
}

// NewTeacherAvailabilityRepo 创建 TeacherAvailabilityRepository 实例
func NewTeacherAvailabilityRepo(db *gorm.DB) TeacherAvailabilityRepository {
	return &teacherAvailabilityRepo{db: db}
}

func (r *teacherAvailabilityRepo) ListByDateRange(ctx context.Context, start, end time.Time) ([]model.TeacherAvailability, error) {
	var records []model.TeacherAvailability
	db := r.db.WithContext(ctx)
	if !start.IsZero() {
		db = db.Where("date >= ?", start.Format(time.DateOnly))
	}
	if !end.IsZero() {
		db = db.Where("date <= ?", end.Format(time.DateOnly))
	}
	err := db.Order("date ASC, created_at ASC").Find(&records).Error
	return records, err
}

func (r *teacherAvailabilityRepo) GetByID(ctx context.Context, id string) (*model.TeacherAvailability, error) {
	var t model.TeacherAvailability
	err := r.db.WithContext(ctx).Where("availability_id = ?", id).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *teacherAvailabilityRepo) Create(ctx context.Context, t *model.TeacherAvailability) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *teacherAvailabilityRepo) BatchCreate(ctx context.Context, records []model.TeacherAvailability) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&records, 200).Error
}

func (r *teacherAvailabilityRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("availability_id = ?", id).
		Delete(&model.TeacherAvailability{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
