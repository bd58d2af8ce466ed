package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thunder-scheduler/backend/internal/model"
)

// ClassRepository 班级及其不可排时段数据访问接口
type ClassRepository interface {
	List(ctx context.Context) ([]model.Class, error)
	GetByID(ctx context.Context, id string) (*model.Class, error)
	GetByName(ctx context.Context, name string) (*model.Class, error)
	Create(ctx context.Context, class *model.Class) error
	// Update 更新班级字段并整体替换其不可排时段
	Update(ctx context.Context, class *model.Class) error
	Delete(ctx context.Context, id string) error
	// UpsertByName 按名称新增或更新班级，并整体替换其不可排时段；单事务
	UpsertByName(ctx context.Context, classes []model.Class) error
}

type classRepo struct {
	db *gorm.DB
}

// NewClassRepo 创建 ClassRepository 实例
func NewClassRepo(db *gorm.DB) ClassRepository {
	return &classRepo{db: db}
}

func (r *classRepo) List(ctx context.Context) ([]model.Class, error) {
	var classes []model.Class
	err := r.db.WithContext(ctx).
		Preload("Conflicts", func(db *gorm.DB) *gorm.DB { return db.Order("weekday ASC") }).
		Order("name ASC").
		Find(&classes).Error
	return classes, err
}

func (r *classRepo) GetByID(ctx context.Context, id string) (*model.Class, error) {
	var class model.Class
	err := r.db.WithContext(ctx).
		Preload("Conflicts").
		Where("class_id = ?", id).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepo) GetByName(ctx context.Context, name string) (*model.Class, error) {
	var class model.Class
	err := r.db.WithContext(ctx).
		Preload("Conflicts").
		Where("name = ?", name).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepo) Create(ctx context.Context, class *model.Class) error {
	return r.db.WithContext(ctx).Create(class).Error
}

func (r *classRepo) Update(ctx context.Context, class *model.Class) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Class{}).
			Where("class_id = ?", class.ClassID).
			Updates(map[string]interface{}{
				"name":        class.Name,
				"grade_level": class.GradeLevel,
				"updated_by":  class.UpdatedBy,
				"updated_at":  gorm.Expr("NOW()"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return replaceConflicts(tx, class.ClassID, class.Conflicts)
	})
}

func (r *classRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("class_id = ?", id).
		Delete(&model.Class{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *classRepo) UpsertByName(ctx context.Context, classes []model.Class) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range classes {
			c := &classes[i]
			conflicts := c.Conflicts
			c.Conflicts = nil

			err := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "name"}},
					DoUpdates: clause.Assignments(map[string]interface{}{
						"grade_level": c.GradeLevel,
						"updated_by":  c.UpdatedBy,
						"updated_at":  gorm.Expr("NOW()"),
					}),
				}).
				Create(c).Error
			if err != nil {
				return err
			}
			// ON CONFLICT 分支不一定回填主键，按名称取回
			if c.ClassID == "" {
				if err := tx.Model(&model.Class{}).Select("class_id").Where("name = ?", c.Name).Scan(&c.ClassID).Error; err != nil {
					return err
				}
			}
			if err := replaceConflicts(tx, c.ClassID, conflicts); err != nil {
				return err
			}
			c.Conflicts = conflicts
		}
		return nil
	})
}

// replaceConflicts 删除班级全部不可排时段后重新写入
func replaceConflicts(tx *gorm.DB, classID string, conflicts []model.ClassConflict) error {
	if err := tx.Where("class_id = ?", classID).Delete(&model.ClassConflict{}).Error; err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	for i := range conflicts {
		conflicts[i].ClassID = classID
		conflicts[i].ConflictID = ""
	}
	return tx.Create(&conflicts).Error
}
