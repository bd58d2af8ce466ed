package repository

import (
	"context"

	"gorm.io/gorm"

	"thunder-scheduler/backend/internal/model"
	pkgerrors "thunder-scheduler/backend/pkg/errors"
)

// ScheduleRepository 排课方案数据访问接口
type ScheduleRepository interface {
	// Create 在同一事务中写入方案及其排课记录
	Create(ctx context.Context, schedule *model.Schedule) error
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	List(ctx context.Context, offset, limit int) ([]model.Schedule, int64, error)
	// Delete 删除方案，排课记录随外键级联删除
	Delete(ctx context.Context, id string) error
}

// AssignmentRepository 排课记录数据访问接口
type AssignmentRepository interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]model.Assignment, error)
	// ReplaceAll 单事务内整体替换方案的排课记录并递增方案版本。
	// expectedVersion 非 nil 时要求方案仍处于该版本，否则返回 ErrOptimisticLock
	ReplaceAll(ctx context.Context, scheduleID string, assignments []model.Assignment, expectedVersion *int, updatedBy *string) error
}

// ── Schedule Repository 实现 ──

type scheduleRepo struct {
	db *gorm.DB
}

func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) Create(ctx context.Context, schedule *model.Schedule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignments := schedule.Assignments
		schedule.Assignments = nil
		if err := tx.Create(schedule).Error; err != nil {
			return err
		}
		for i := range assignments {
			assignments[i].ScheduleID = schedule.ScheduleID
		}
		if len(assignments) > 0 {
			if err := tx.CreateInBatches(&assignments, 500).Error; err != nil {
				return err
			}
		}
		schedule.Assignments = assignments
		return nil
	})
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("week ASC, period ASC, class_id ASC")
		}).
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) List(ctx context.Context, offset, limit int) ([]model.Schedule, int64, error) {
	var schedules []model.Schedule
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Schedule{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&schedules).Error
	return schedules, total, err
}

func (r *scheduleRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("schedule_id = ?", id).
		Delete(&model.Schedule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// missingOrStale 条件更新未命中时区分方案不存在与版本冲突
func missingOrStale(tx *gorm.DB, scheduleID string, expectedVersion *int) error {
	if expectedVersion == nil {
		return gorm.ErrRecordNotFound
	}
	var count int64
	if err := tx.Model(&model.Schedule{}).Where("schedule_id = ?", scheduleID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return pkgerrors.ErrOptimisticLock
}

// ── Assignment Repository 实现 ──

type assignmentRepo struct {
	db *gorm.DB
}

func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) ListBySchedule(ctx context.Context, scheduleID string) ([]model.Assignment, error) {
	var rows []model.Assignment
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Order("week ASC, period ASC, class_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *assignmentRepo) ReplaceAll(ctx context.Context, scheduleID string, assignments []model.Assignment, expectedVersion *int, updatedBy *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先递增版本：锁住该行直到事务结束
		q := tx.Model(&model.Schedule{}).Where("schedule_id = ?", scheduleID)
		if expectedVersion != nil {
			q = q.Where("version = ?", *expectedVersion)
		}
		result := q.Updates(map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"updated_by": updatedBy,
			"updated_at": gorm.Expr("NOW()"),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return missingOrStale(tx, scheduleID, expectedVersion)
		}

		if err := tx.Where("schedule_id = ?", scheduleID).Delete(&model.Assignment{}).Error; err != nil {
			return err
		}
		if len(assignments) == 0 {
			return nil
		}
		rows := make([]model.Assignment, len(assignments))
		for i, a := range assignments {
			a.AssignmentID = ""
			a.ScheduleID = scheduleID
			rows[i] = a
		}
		return tx.CreateInBatches(&rows, 500).Error
	})
}
