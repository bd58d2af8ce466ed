// Package solver 排课生成器适配层。生成器对核心算法不透明，只需遵守同一数据模型。
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"thunder-scheduler/backend/internal/calendar"
)

var (
	// ErrInfeasible 在给定约束下无可行解
	ErrInfeasible = errors.New("排课无可行解")
	// ErrUnknownMode 未知的生成器类型
	ErrUnknownMode = errors.New("未知的排课生成器类型")
	// ErrBadRequest 请求参数无效
	ErrBadRequest = errors.New("排课请求参数无效")
)

// Status 求解状态
type Status string

const (
	StatusSuccess    Status = "success"
	StatusInfeasible Status = "infeasible"
)

// Request 生成请求。每个班级在一个轮换周期内恰好排一次。
type Request struct {
	Classes             []calendar.Class
	TeacherAvailability []calendar.TeacherAvailability
	Constraints         calendar.Constraints
	StartDate           time.Time
	EndDate             time.Time
	RotationWeeks       int
	PeriodsPerDay       int
}

func (r *Request) check() error {
	if len(r.Classes) == 0 {
		return fmt.Errorf("%w: 班级列表为空", ErrBadRequest)
	}
	if r.RotationWeeks < 1 {
		return fmt.Errorf("%w: 轮换周数必须为正数", ErrBadRequest)
	}
	if r.PeriodsPerDay < 1 {
		return fmt.Errorf("%w: 每日节次数必须为正数", ErrBadRequest)
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return fmt.Errorf("%w: %w", ErrBadRequest, calendar.ErrInvalidDateRange)
	}
	if err := r.Constraints.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// Result 生成结果
type Result struct {
	Status         Status                `json:"status"`
	Assignments    []calendar.Assignment `json:"assignments"`
	Message        string                `json:"message,omitempty"`
	SolveTime      time.Duration         `json:"solve_time"`
	NumClasses     int                   `json:"num_classes"`
	NumAssignments int                   `json:"num_assignments"`
}

// Generator 排课生成器
type Generator interface {
	// Generate 无解时返回 Status=infeasible 的结果，同时返回包装 ErrInfeasible 的错误
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// Config 生成器配置
type Config struct {
	Mode      string        // greedy | subprocess
	Command   string        // subprocess 模式下的可执行文件
	Args      []string      // subprocess 模式下的参数
	TimeLimit time.Duration // 单次求解时限
}

// New 按配置创建生成器
func New(cfg Config, logger *zap.Logger) (Generator, error) {
	switch cfg.Mode {
	case "", "greedy":
		return NewGreedy(cfg.TimeLimit, logger), nil
	case "subprocess":
		if cfg.Command == "" {
			return nil, fmt.Errorf("%w: subprocess 模式需要配置 solver.command", ErrUnknownMode)
		}
		return NewSubprocess(cfg.Command, cfg.Args, cfg.TimeLimit, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
}

func infeasible(res *Result, format string, args ...any) (*Result, error) {
	res.Status = StatusInfeasible
	res.Message = fmt.Sprintf(format, args...)
	res.Assignments = nil
	res.NumAssignments = 0
	return res, fmt.Errorf("%w: %s", ErrInfeasible, res.Message)
}
