package service

import (
	"go.uber.org/zap"

	"thunder-scheduler/backend/config"
	"thunder-scheduler/backend/internal/repository"
	"thunder-scheduler/backend/internal/solver"
	"thunder-scheduler/backend/internal/validation"
	"thunder-scheduler/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	Class        ClassService
	Availability AvailabilityService
	Schedule     ScheduleService
	Export       ExportService
}

// Deps 构造 Service 所需的外部依赖
type Deps struct {
	Config    *config.Config
	Repo      *repository.Repository
	JWT       *jwt.Manager
	Cache     CalendarCache // 可为 nil，此时每次直接查库
	Generator solver.Generator
	Validator *validation.Orchestrator
	Logger    *zap.Logger
}

// NewService 创建 Service 聚合
func NewService(d Deps) (*Service, error) {
	if d.Validator == nil {
		d.Validator = validation.NewOrchestrator()
	}
	calendars := newCalendarLoader(d.Repo.Calendar, d.Cache, d.Config.Cache.CalendarTTL, d.Logger)

	icsParser, err := NewICSParser(&d.Config.Schedule)
	if err != nil {
		return nil, err
	}

	return &Service{
		Auth:         NewAuthService(d.Config, d.JWT, d.Logger),
		Class:        NewClassService(d.Config, d.Repo, calendars, d.Logger),
		Availability: NewAvailabilityService(d.Config, d.Repo, calendars, icsParser, d.Logger),
		Schedule:     NewScheduleService(d.Config, d.Repo, calendars, d.Generator, d.Validator, d.Logger),
		Export:       NewExportService(d.Config, d.Repo, d.Logger),
	}, nil
}
