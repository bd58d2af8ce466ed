package handler

import "thunder-scheduler/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	Class        *ClassHandler
	Availability *AvailabilityHandler
	Schedule     *ScheduleHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		Class:        NewClassHandler(svc.Class),
		Availability: NewAvailabilityHandler(svc.Availability),
		Schedule:     NewScheduleHandler(svc.Schedule),
		Export:       NewExportHandler(svc.Export),
	}
}
