package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"thunder-scheduler/backend/config"
	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/dto"
	"thunder-scheduler/backend/internal/model"
	"thunder-scheduler/backend/internal/repository"
	"thunder-scheduler/backend/internal/solver"
	"thunder-scheduler/backend/internal/validation"
	pkgerrors "thunder-scheduler/backend/pkg/errors"
	"thunder-scheduler/backend/pkg/logger"
)

// ── 排课模块业务错误 ──

var (
	ErrScheduleNotFound        = errors.New("排课方案不存在")
	ErrScheduleInfeasible      = errors.New("在当前约束下无法生成排课方案")
	ErrInvalidScheduleRequest  = errors.New("排课参数无效")
	ErrInvalidAssignment       = errors.New("排课记录无效")
	ErrNoClasses               = errors.New("没有可排的班级")
	ErrScheduleVersionConflict = errors.New("排课方案已被修改，请刷新后重试")
)

// InfeasibleError 生成器报告无解，Message 为生成器给出的原因
type InfeasibleError struct {
	Message string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrScheduleInfeasible.Error(), e.Message)
}

func (e *InfeasibleError) Unwrap() error { return ErrScheduleInfeasible }

// ScheduleService 排课业务接口
type ScheduleService interface {
	// Generate 调用排课生成器并保存结果
	Generate(ctx context.Context, req *dto.GenerateScheduleRequest, editor string) (*dto.GenerateScheduleResponse, error)
	List(ctx context.Context, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, int64, error)
	Get(ctx context.Context, id string) (*dto.ScheduleResponse, error)
	// Delete 删除方案及其全部排课记录
	Delete(ctx context.Context, id string) error
	// Validate 以假设的排课集合整体替换方案后进行校验，不写库
	Validate(ctx context.Context, id string, assignments []calendar.Assignment) (*validation.Report, error)
	// ValidateStored 校验已保存的排课集合
	ValidateStored(ctx context.Context, id string) (*validation.Report, error)
	// ReplaceAssignments 单事务整体替换排课记录；冲突的集合同样允许保存
	ReplaceAssignments(ctx context.Context, id string, req *dto.ReplaceAssignmentsRequest, editor string) (*dto.ScheduleResponse, error)
}

type scheduleService struct {
	defaults  config.ScheduleConfig
	repo      *repository.Repository
	calendars *calendarLoader
	generator solver.Generator
	validator *validation.Orchestrator
	logger    *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(
	cfg *config.Config,
	repo *repository.Repository,
	calendars *calendarLoader,
	generator solver.Generator,
	validator *validation.Orchestrator,
	logger *zap.Logger,
) ScheduleService {
	return &scheduleService{
		defaults:  cfg.Schedule,
		repo:      repo,
		calendars: calendars,
		generator: generator,
		validator: validator,
		logger:    logger,
	}
}

// ════════════════════════════════════════════════════════════
// Generate 生成排课方案
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Generate(ctx context.Context, req *dto.GenerateScheduleRequest, editor string) (*dto.GenerateScheduleResponse, error) {
	log := logger.FromContext(ctx, s.logger)

	// ── 阶段1: 参数整理 ──
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	rotationWeeks := req.RotationWeeks
	if rotationWeeks == 0 {
		rotationWeeks = s.defaults.RotationWeeks
	}
	periodsPerDay := req.PeriodsPerDay
	if periodsPerDay == 0 {
		periodsPerDay = s.defaults.PeriodsPerDay
	}
	constraints := s.mergeConstraints(req.Constraints)
	if err := constraints.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScheduleRequest, err)
	}

	// ── 阶段2: 日历数据 ──
	cal, err := s.calendars.Load(ctx, start, end)
	if err != nil {
		log.Error("加载日历数据失败", zap.Error(err))
		return nil, err
	}
	classes, err := selectClasses(cal.Classes, req.ClassIDs)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, ErrNoClasses
	}

	// ── 阶段3: 调用生成器 ──
	solverReq := &solver.Request{
		Classes:             classes,
		TeacherAvailability: availabilityToCalendar(cal.TeacherAvailability),
		Constraints:         constraints,
		StartDate:           start,
		EndDate:             end,
		RotationWeeks:       rotationWeeks,
		PeriodsPerDay:       periodsPerDay,
	}
	result, err := s.generator.Generate(ctx, solverReq)
	if err != nil {
		switch {
		case errors.Is(err, solver.ErrInfeasible):
			msg := err.Error()
			if result != nil && result.Message != "" {
				msg = result.Message
			}
			log.Info("排课无可行解", zap.String("reason", msg), zap.Int("classes", len(classes)))
			return nil, &InfeasibleError{Message: msg}
		case errors.Is(err, solver.ErrBadRequest):
			return nil, fmt.Errorf("%w: %v", ErrInvalidScheduleRequest, err)
		default:
			log.Error("排课生成器执行失败", zap.Error(err))
			return nil, err
		}
	}

	// ── 阶段4: 组装方案 ──
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("排课方案 %s ~ %s", calendar.DateKey(start), calendar.DateKey(end))
	}
	schedule := &model.Schedule{
		Name:          name,
		StartDate:     start,
		EndDate:       end,
		RotationWeeks: rotationWeeks,
		PeriodsPerDay: periodsPerDay,
		Assignments:   model.AssignmentsFromCalendar("", result.Assignments),
	}
	schedule.SetConstraints(constraints)
	schedule.CreatedBy = &editor
	schedule.UpdatedBy = &editor

	// ── 阶段5: 校验生成结果，失败时不落库 ──
	in := validation.NewInput(schedule.ToCalendar(result.Assignments), classesToCalendar(cal.Classes), solverReq.TeacherAvailability)
	report, err := s.validator.Validate(ctx, in)
	if err != nil {
		return nil, err
	}

	// ── 阶段6: 保存 ──
	if err := s.repo.Schedule.Create(ctx, schedule); err != nil {
		log.Error("保存排课方案失败", zap.Error(err))
		return nil, err
	}

	log.Info("排课方案已生成",
		zap.String("schedule_id", schedule.ScheduleID),
		zap.Int("assignments", len(result.Assignments)),
		zap.Duration("solve_time", result.SolveTime),
		zap.Bool("valid", report.Valid),
	)

	return &dto.GenerateScheduleResponse{
		Schedule:    toScheduleResponse(schedule, true),
		Report:      report,
		SolveTimeMs: result.SolveTime.Milliseconds(),
		Message:     result.Message,
	}, nil
}

func (s *scheduleService) mergeConstraints(req *dto.ConstraintsRequest) calendar.Constraints {
	d := s.defaults.Constraints
	c := calendar.Constraints{
		MaxClassesPerDay:       d.MaxClassesPerDay,
		MaxClassesPerWeek:      d.MaxClassesPerWeek,
		MaxConsecutiveClasses:  d.MaxConsecutiveClasses,
		RequireBreakAfterClass: d.RequireBreakAfterClass,
	}
	if req == nil {
		return c
	}
	if req.MaxClassesPerDay != nil {
		c.MaxClassesPerDay = *req.MaxClassesPerDay
	}
	if req.MaxClassesPerWeek != nil {
		c.MaxClassesPerWeek = *req.MaxClassesPerWeek
	}
	if req.MaxConsecutiveClasses != nil {
		c.MaxConsecutiveClasses = *req.MaxConsecutiveClasses
	}
	if req.RequireBreakAfterClass != nil {
		c.RequireBreakAfterClass = *req.RequireBreakAfterClass
	}
	return c
}

// ════════════════════════════════════════════════════════════
// 查询与删除
// ════════════════════════════════════════════════════════════

func (s *scheduleService) List(ctx context.Context, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, int64, error) {
	schedules, total, err := s.repo.Schedule.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("查询排课方案列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		result = append(result, toScheduleResponse(&schedules[i], false))
	}
	return result, total, nil
}

func (s *scheduleService) Get(ctx context.Context, id string) (*dto.ScheduleResponse, error) {
	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toScheduleResponse(schedule, true)
	return &resp, nil
}

func (s *scheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Schedule.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScheduleNotFound
		}
		logger.FromContext(ctx, s.logger).Error("删除排课方案失败", zap.String("schedule_id", id), zap.Error(err))
		return err
	}
	logger.FromContext(ctx, s.logger).Info("删除排课方案", zap.String("schedule_id", id))
	return nil
}

// ════════════════════════════════════════════════════════════
// Validate 整体校验
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Validate(ctx context.Context, id string, assignments []calendar.Assignment) (*validation.Report, error) {
	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAssignments(assignments, schedule.PeriodsPerDay, schedule.RotationWeeks); err != nil {
		return nil, err
	}
	if assignments == nil {
		assignments = []calendar.Assignment{}
	}
	return s.validate(ctx, schedule, assignments)
}

func (s *scheduleService) ValidateStored(ctx context.Context, id string) (*validation.Report, error) {
	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.validate(ctx, schedule, model.AssignmentsToCalendar(schedule.Assignments))
}

func (s *scheduleService) validate(ctx context.Context, schedule *model.Schedule, assignments []calendar.Assignment) (*validation.Report, error) {
	cal, err := s.calendars.Load(ctx, schedule.StartDate, schedule.EndDate)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("加载日历数据失败", zap.Error(err))
		return nil, err
	}
	in := validation.NewInput(
		schedule.ToCalendar(assignments),
		classesToCalendar(cal.Classes),
		availabilityToCalendar(cal.TeacherAvailability),
	)
	return s.validator.Validate(ctx, in)
}

// ════════════════════════════════════════════════════════════
// ReplaceAssignments 整体替换
// ════════════════════════════════════════════════════════════

func (s *scheduleService) ReplaceAssignments(ctx context.Context, id string, req *dto.ReplaceAssignmentsRequest, editor string) (*dto.ScheduleResponse, error) {
	log := logger.FromContext(ctx, s.logger)

	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != schedule.Version {
		return nil, ErrScheduleVersionConflict
	}

	assignments := dto.AssignmentsToCalendar(req.Assignments)
	if err := checkAssignments(assignments, schedule.PeriodsPerDay, schedule.RotationWeeks); err != nil {
		return nil, err
	}
	if err := s.checkClassesExist(ctx, schedule, assignments); err != nil {
		return nil, err
	}

	rows := model.AssignmentsFromCalendar(id, assignments)
	if err := s.repo.Assignment.ReplaceAll(ctx, id, rows, req.Version, &editor); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrScheduleNotFound
		case errors.Is(err, pkgerrors.ErrOptimisticLock):
			return nil, ErrScheduleVersionConflict
		}
		log.Error("替换排课记录失败", zap.String("schedule_id", id), zap.Error(err))
		return nil, err
	}

	log.Info("排课记录已替换",
		zap.String("schedule_id", id),
		zap.Int("assignments", len(rows)),
		zap.String("editor", editor),
	)

	updated, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toScheduleResponse(updated, true)
	return &resp, nil
}

func (s *scheduleService) checkClassesExist(ctx context.Context, schedule *model.Schedule, assignments []calendar.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	cal, err := s.calendars.Load(ctx, schedule.StartDate, schedule.EndDate)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(cal.Classes))
	for _, c := range cal.Classes {
		known[c.ClassID] = true
	}
	for _, a := range assignments {
		if !known[a.ClassID] {
			return fmt.Errorf("%w: %s", ErrClassNotFound, a.ClassID)
		}
	}
	return nil
}

// ── 辅助函数 ──

func (s *scheduleService) getSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	schedule, err := s.repo.Schedule.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		logger.FromContext(ctx, s.logger).Error("查询排课方案失败", zap.String("schedule_id", id), zap.Error(err))
		return nil, err
	}
	return schedule, nil
}

// checkAssignments 校验节次与周次落在方案网格内
func checkAssignments(as []calendar.Assignment, periodsPerDay, rotationWeeks int) error {
	for i, a := range as {
		if err := a.Validate(periodsPerDay, rotationWeeks); err != nil {
			return fmt.Errorf("%w: 第 %d 条 %w", ErrInvalidAssignment, i+1, err)
		}
	}
	return nil
}

// selectClasses 按 ID 过滤班级，ids 为空时返回全部
func selectClasses(all []model.Class, ids []string) ([]calendar.Class, error) {
	if len(ids) == 0 {
		return classesToCalendar(all), nil
	}
	byID := make(map[string]model.Class, len(all))
	for _, c := range all {
		byID[c.ClassID] = c
	}
	seen := make(map[string]bool, len(ids))
	out := make([]calendar.Class, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrClassNotFound, id)
		}
		out = append(out, c.ToCalendar())
	}
	return out, nil
}

func classesToCalendar(classes []model.Class) []calendar.Class {
	out := make([]calendar.Class, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.ToCalendar())
	}
	return out
}

func availabilityToCalendar(records []model.TeacherAvailability) []calendar.TeacherAvailability {
	out := make([]calendar.TeacherAvailability, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToCalendar())
	}
	return out
}

func toScheduleResponse(s *model.Schedule, withAssignments bool) dto.ScheduleResponse {
	resp := dto.ScheduleResponse{
		ID:            s.ScheduleID,
		Name:          s.Name,
		StartDate:     calendar.DateKey(s.StartDate),
		EndDate:       calendar.DateKey(s.EndDate),
		RotationWeeks: s.RotationWeeks,
		PeriodsPerDay: s.PeriodsPerDay,
		Constraints:   s.Constraints(),
		Version:       s.Version,
		CreatedAt:     s.CreatedAt.Format(dto.TimeLayout),
		UpdatedAt:     s.UpdatedAt.Format(dto.TimeLayout),
	}
	if withAssignments {
		resp.Assignments = model.AssignmentsToCalendar(s.Assignments)
		calendar.SortAssignments(resp.Assignments)
	}
	return resp
}
