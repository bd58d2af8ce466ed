package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"thunder-scheduler/backend/config"
	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/dto"
	"thunder-scheduler/backend/internal/model"
	"thunder-scheduler/backend/internal/repository"
	"thunder-scheduler/backend/pkg/logger"
)

// ── 教师停课模块业务错误 ──

var (
	ErrAvailabilityNotFound = errors.New("停课记录不存在")
	ErrInvalidDate          = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrInvalidDateRange     = errors.New("结束日期不能早于开始日期")
	ErrICSParseFailed       = errors.New("ICS 格式解析失败")
	ErrICSFetchFailed       = errors.New("ICS URL 获取失败")
)

// AvailabilityService 教师停课业务接口
type AvailabilityService interface {
	List(ctx context.Context, req *dto.ListAvailabilityRequest) ([]dto.AvailabilityResponse, error)
	Create(ctx context.Context, req *dto.CreateAvailabilityRequest, editor string) (*dto.AvailabilityResponse, error)
	Delete(ctx context.Context, id string) error
	// ImportICS 解析 ICS 并写入 [start, end] 内的停课记录
	ImportICS(ctx context.Context, r io.Reader, start, end string, editor string) (*dto.ImportICSResponse, error)
	// ImportICSURL 从 URL 拉取 ICS 后导入
	ImportICSURL(ctx context.Context, req *dto.ImportICSRequest, editor string) (*dto.ImportICSResponse, error)
}

type availabilityService struct {
	periodsPerDay int
	repo          *repository.Repository
	calendars     *calendarLoader
	parser        *ICSParser
	fetch         func(url string) (io.ReadCloser, error)
	logger        *zap.Logger
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(
	cfg *config.Config,
	repo *repository.Repository,
	calendars *calendarLoader,
	parser *ICSParser,
	logger *zap.Logger,
) AvailabilityService {
	return &availabilityService{
		periodsPerDay: cfg.Schedule.PeriodsPerDay,
		repo:          repo,
		calendars:     calendars,
		parser:        parser,
		fetch:         FetchICSContent,
		logger:        logger,
	}
}

func (s *availabilityService) List(ctx context.Context, req *dto.ListAvailabilityRequest) ([]dto.AvailabilityResponse, error) {
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	cal, err := s.calendars.Load(ctx, start, end)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("查询停课记录失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.AvailabilityResponse, 0, len(cal.TeacherAvailability))
	for i := range cal.TeacherAvailability {
		result = append(result, toAvailabilityResponse(&cal.TeacherAvailability[i]))
	}
	return result, nil
}

func (s *availabilityService) Create(ctx context.Context, req *dto.CreateAvailabilityRequest, editor string) (*dto.AvailabilityResponse, error) {
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	for _, p := range req.BlockedPeriods {
		if p < 1 || p > s.periodsPerDay {
			return nil, fmt.Errorf("%w: 第 %d 节（每日共 %d 节）", ErrPeriodOutOfRange, p, s.periodsPerDay)
		}
	}

	record := &model.TeacherAvailability{
		Date:           date,
		BlockedPeriods: model.IntArray(req.BlockedPeriods).Normalize(),
		Reason:         req.Reason,
		Source:         "manual",
		BaseModel:      model.BaseModel{CreatedBy: &editor, UpdatedBy: &editor},
	}
	if err := s.repo.TeacherAvailability.Create(ctx, record); err != nil {
		logger.FromContext(ctx, s.logger).Error("创建停课记录失败", zap.Error(err))
		return nil, err
	}
	s.calendars.Invalidate(ctx)

	resp := toAvailabilityResponse(record)
	return &resp, nil
}

func (s *availabilityService) Delete(ctx context.Context, id string) error {
	if err := s.repo.TeacherAvailability.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAvailabilityNotFound
		}
		logger.FromContext(ctx, s.logger).Error("删除停课记录失败", zap.String("availability_id", id), zap.Error(err))
		return err
	}
	s.calendars.Invalidate(ctx)
	return nil
}

// ════════════════════════════════════════════════════════════
// ImportICS 教师日历导入
// ════════════════════════════════════════════════════════════

func (s *availabilityService) ImportICS(ctx context.Context, r io.Reader, start, end string, editor string) (*dto.ImportICSResponse, error) {
	log := logger.FromContext(ctx, s.logger)

	from, to, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}

	records, skipped, err := s.parser.Parse(io.LimitReader(r, icsMaxFileSize), from, to)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].CreatedBy = &editor
		records[i].UpdatedBy = &editor
	}

	if err := s.repo.TeacherAvailability.BatchCreate(ctx, records); err != nil {
		log.Error("写入 ICS 停课记录失败", zap.Int("count", len(records)), zap.Error(err))
		return nil, err
	}
	if len(records) > 0 {
		s.calendars.Invalidate(ctx)
	}

	log.Info("ICS 导入完成", zap.Int("imported", len(records)), zap.Int("skipped", skipped))

	resp := &dto.ImportICSResponse{
		Imported: len(records),
		Skipped:  skipped,
		Records:  make([]dto.AvailabilityResponse, 0, len(records)),
	}
	for i := range records {
		resp.Records = append(resp.Records, toAvailabilityResponse(&records[i]))
	}
	return resp, nil
}

func (s *availabilityService) ImportICSURL(ctx context.Context, req *dto.ImportICSRequest, editor string) (*dto.ImportICSResponse, error) {
	body, err := s.fetch(req.URL)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("拉取 ICS 失败", zap.String("url", req.URL), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrICSFetchFailed, err)
	}
	defer body.Close()
	return s.ImportICS(ctx, body, req.Start, req.End, editor)
}

// ── 辅助函数 ──

// parseRange 解析可选的日期区间
func parseRange(start, end string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = calendar.ParseDate(start); err != nil {
			return from, to, ErrInvalidDate
		}
	}
	if end != "" {
		if to, err = calendar.ParseDate(end); err != nil {
			return from, to, ErrInvalidDate
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, ErrInvalidDateRange
	}
	return from, to, nil
}

func toAvailabilityResponse(t *model.TeacherAvailability) dto.AvailabilityResponse {
	resp := dto.AvailabilityResponse{
		ID:             t.AvailabilityID,
		Date:           calendar.DateKey(t.Date),
		BlockedPeriods: []int(t.BlockedPeriods.Normalize()),
		Reason:         t.Reason,
		Source:         t.Source,
	}
	if wd, ok := calendar.FromTime(t.Date.Weekday()); ok {
		resp.Weekday = wd.String()
	}
	return resp
}
