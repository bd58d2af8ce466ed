package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"thunder-scheduler/backend/config"
	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/dto"
	"thunder-scheduler/backend/internal/model"
	"thunder-scheduler/backend/internal/repository"
	"thunder-scheduler/backend/pkg/logger"
)

// ── 班级模块业务错误 ──

var (
	ErrClassNotFound      = errors.New("班级不存在")
	ErrClassNameExists    = errors.New("班级名称已存在")
	ErrPeriodOutOfRange   = errors.New("节次超出范围")
	ErrImportInvalid      = errors.New("导入内容校验失败")
	ErrImportEmpty        = errors.New("导入内容中没有班级")
	ErrInvalidWeekdayData = errors.New("不可排时段的星期无效")
)

// ClassService 班级业务接口
type ClassService interface {
	List(ctx context.Context) ([]dto.ClassResponse, error)
	Get(ctx context.Context, id string) (*dto.ClassResponse, error)
	Create(ctx context.Context, req *dto.CreateClassRequest, editor string) (*dto.ClassResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateClassRequest, editor string) (*dto.ClassResponse, error)
	Delete(ctx context.Context, id string) error
	// Import 解析 CSV 并按名称新增或更新班级；校验失败时返回 *ImportError
	Import(ctx context.Context, r io.Reader, editor string) (*dto.ImportClassesResponse, error)
}

type classService struct {
	periodsPerDay int
	csvMaxPeriods int
	repo          *repository.Repository
	calendars     *calendarLoader
	logger        *zap.Logger
}

// NewClassService 创建 ClassService 实例
func NewClassService(cfg *config.Config, repo *repository.Repository, calendars *calendarLoader, logger *zap.Logger) ClassService {
	return &classService{
		periodsPerDay: cfg.Schedule.PeriodsPerDay,
		csvMaxPeriods: cfg.Schedule.CSVMaxPeriods,
		repo:          repo,
		calendars:     calendars,
		logger:        logger,
	}
}

func (s *classService) List(ctx context.Context) ([]dto.ClassResponse, error) {
	classes, err := s.repo.Class.List(ctx)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("查询班级列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.ClassResponse, 0, len(classes))
	for i := range classes {
		result = append(result, toClassResponse(&classes[i]))
	}
	return result, nil
}

func (s *classService) Get(ctx context.Context, id string) (*dto.ClassResponse, error) {
	class, err := s.repo.Class.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		logger.FromContext(ctx, s.logger).Error("查询班级失败", zap.String("class_id", id), zap.Error(err))
		return nil, err
	}
	resp := toClassResponse(class)
	return &resp, nil
}

func (s *classService) Create(ctx context.Context, req *dto.CreateClassRequest, editor string) (*dto.ClassResponse, error) {
	log := logger.FromContext(ctx, s.logger)
	name := strings.TrimSpace(req.Name)

	if _, err := s.repo.Class.GetByName(ctx, name); err == nil {
		return nil, ErrClassNameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error("查询班级名称失败", zap.Error(err))
		return nil, err
	}

	conflicts, err := s.buildConflicts("", req.Conflicts, editor)
	if err != nil {
		return nil, err
	}

	class := &model.Class{
		Name:       name,
		GradeLevel: req.GradeLevel,
		Conflicts:  conflicts,
		BaseModel:  model.BaseModel{CreatedBy: &editor, UpdatedBy: &editor},
	}
	if err := s.repo.Class.Create(ctx, class); err != nil {
		log.Error("创建班级失败", zap.Error(err))
		return nil, err
	}
	s.calendars.Invalidate(ctx)

	log.Info("创建班级", zap.String("class_id", class.ClassID), zap.String("name", class.Name))
	resp := toClassResponse(class)
	return &resp, nil
}

func (s *classService) Update(ctx context.Context, id string, req *dto.UpdateClassRequest, editor string) (*dto.ClassResponse, error) {
	log := logger.FromContext(ctx, s.logger)

	class, err := s.repo.Class.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		log.Error("查询班级失败", zap.Error(err))
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != class.Name {
			if existing, err := s.repo.Class.GetByName(ctx, name); err == nil && existing.ClassID != id {
				return nil, ErrClassNameExists
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Error("查询班级名称失败", zap.Error(err))
				return nil, err
			}
		}
		class.Name = name
	}
	if req.GradeLevel != nil {
		class.GradeLevel = *req.GradeLevel
	}
	if req.Conflicts != nil {
		conflicts, err := s.buildConflicts(id, *req.Conflicts, editor)
		if err != nil {
			return nil, err
		}
		class.Conflicts = conflicts
	}
	class.UpdatedBy = &editor

	if err := s.repo.Class.Update(ctx, class); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		log.Error("更新班级失败", zap.Error(err))
		return nil, err
	}
	s.calendars.Invalidate(ctx)

	resp := toClassResponse(class)
	return &resp, nil
}

func (s *classService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Class.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		logger.FromContext(ctx, s.logger).Error("删除班级失败", zap.String("class_id", id), zap.Error(err))
		return err
	}
	s.calendars.Invalidate(ctx)
	return nil
}

// ════════════════════════════════════════════════════════════
// Import CSV 批量导入不可排时段
// ════════════════════════════════════════════════════════════

func (s *classService) Import(ctx context.Context, r io.Reader, editor string) (*dto.ImportClassesResponse, error) {
	log := logger.FromContext(ctx, s.logger)

	maxPeriods := s.csvMaxPeriods
	if s.periodsPerDay > 0 && (maxPeriods <= 0 || s.periodsPerDay < maxPeriods) {
		maxPeriods = s.periodsPerDay
	}
	parsed, err := ParseConflictsCSV(r, maxPeriods)
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, ErrImportEmpty
	}

	classes := make([]model.Class, 0, len(parsed))
	for _, pc := range parsed {
		c := model.Class{
			Name:      pc.Name,
			BaseModel: model.BaseModel{CreatedBy: &editor, UpdatedBy: &editor},
		}
		for _, day := range calendar.Weekdays {
			periods := pc.Conflicts[day]
			if len(periods) == 0 {
				continue
			}
			c.Conflicts = append(c.Conflicts, model.ClassConflict{
				Weekday:   day,
				Periods:   model.IntArray(periods),
				BaseModel: model.BaseModel{CreatedBy: &editor, UpdatedBy: &editor},
			})
		}
		classes = append(classes, c)
	}

	if err := s.repo.Class.UpsertByName(ctx, classes); err != nil {
		log.Error("导入班级失败", zap.Int("count", len(classes)), zap.Error(err))
		return nil, err
	}
	s.calendars.Invalidate(ctx)

	log.Info("CSV 导入班级完成", zap.Int("count", len(classes)))

	resp := &dto.ImportClassesResponse{Imported: len(classes), Classes: make([]dto.ClassResponse, 0, len(classes))}
	for i := range classes {
		resp.Classes = append(resp.Classes, toClassResponse(&classes[i]))
	}
	return resp, nil
}

// ── 辅助函数 ──

// buildConflicts 校验节次范围并合并同一星期的多条记录
func (s *classService) buildConflicts(classID string, entries []dto.ConflictEntry, editor string) ([]model.ClassConflict, error) {
	raw := make([]calendar.ClassConflict, 0, len(entries))
	for _, e := range entries {
		if !e.Weekday.Valid() {
			return nil, ErrInvalidWeekdayData
		}
		for _, p := range e.Periods {
			if p < 1 || p > s.periodsPerDay {
				return nil, fmt.Errorf("%w: %s 第 %d 节（每日共 %d 节）", ErrPeriodOutOfRange, e.Weekday, p, s.periodsPerDay)
			}
		}
		raw = append(raw, calendar.ClassConflict{ClassID: classID, Weekday: e.Weekday, Periods: e.Periods})
	}

	merged := calendar.MergeConflicts(raw)
	out := make([]model.ClassConflict, 0, len(merged))
	for _, cc := range merged {
		if len(cc.Periods) == 0 {
			continue
		}
		out = append(out, model.ClassConflict{
			ClassID:   classID,
			Weekday:   cc.Weekday,
			Periods:   model.IntArray(cc.Periods),
			BaseModel: model.BaseModel{CreatedBy: &editor, UpdatedBy: &editor},
		})
	}
	return out, nil
}

func toClassResponse(c *model.Class) dto.ClassResponse {
	conflicts := make([]dto.ConflictEntry, 0, len(c.Conflicts))
	for _, cc := range c.Conflicts {
		conflicts = append(conflicts, dto.ConflictEntry{Weekday: cc.Weekday, Periods: []int(cc.Periods.Normalize())})
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Weekday < conflicts[j].Weekday })
	return dto.ClassResponse{
		ID:         c.ClassID,
		Name:       c.Name,
		GradeLevel: c.GradeLevel,
		Conflicts:  conflicts,
		CreatedAt:  c.CreatedAt.Format(dto.TimeLayout),
		UpdatedAt:  c.UpdatedAt.Format(dto.TimeLayout),
	}
}
