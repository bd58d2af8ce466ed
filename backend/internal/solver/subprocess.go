package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"thunder-scheduler/backend/internal/calendar"
)

// Subprocess 外部求解器适配：请求 JSON 写入 stdin，结果 JSON 从 stdout 读取
type Subprocess struct {
	command   string
	args      []string
	timeLimit time.Duration
	logger    *zap.Logger
}

// NewSubprocess 创建外部求解器适配
func NewSubprocess(command string, args []string, timeLimit time.Duration, logger *zap.Logger) *Subprocess {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subprocess{command: command, args: args, timeLimit: timeLimit, logger: logger}
}

// ── 线协议 ──

type wireClass struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	GradeLevel int    `json:"gradeLevel"`
}

type wireConstraints struct {
	MaxClassesPerDay       int  `json:"maxClassesPerDay"`
	MaxClassesPerWeek      int  `json:"maxClassesPerWeek"`
	MaxConsecutiveClasses  int  `json:"maxConsecutiveClasses"`
	RequireBreakAfterClass bool `json:"requireBreakAfterClass"`
}

type wireBlackout struct {
	Date           string `json:"date"`
	BlockedPeriods []int  `json:"blockedPeriods"`
}

type wireRequest struct {
	Classes   []wireClass                 `json:"classes"`
	Conflicts map[string]map[string][]int `json:"conflicts"`
	// TeacherAvailability 按星期汇总的停课节次（外部求解器的既有格式）
	TeacherAvailability map[string][]int `json:"teacherAvailability"`
	// TeacherBlackouts 按具体日期的停课节次
	TeacherBlackouts []wireBlackout  `json:"teacherBlackouts"`
	Constraints      wireConstraints `json:"constraints"`
	StartDate        string          `json:"startDate"`
	EndDate          string          `json:"endDate,omitempty"`
	RotationWeeks    int             `json:"rotationWeeks"`
	PeriodsPerDay    int             `json:"periodsPerDay"`
	TimeLimit        float64         `json:"timeLimit,omitempty"`
}

type wireAssignment struct {
	ClassID string `json:"classId"`
	Day     string `json:"day"`
	Period  int    `json:"period"`
	Week    int    `json:"week"`
}

type wireResult struct {
	Status    string           `json:"status"`
	Message   string           `json:"message"`
	Solution  []wireAssignment `json:"solution"`
	SolveTime float64          `json:"solveTime"`
}

func encodeRequest(req *Request, timeLimit time.Duration) wireRequest {
	w := wireRequest{
		Classes:             make([]wireClass, 0, len(req.Classes)),
		Conflicts:           make(map[string]map[string][]int),
		TeacherAvailability: make(map[string][]int),
		TeacherBlackouts:    make([]wireBlackout, 0, len(req.TeacherAvailability)),
		Constraints: wireConstraints{
			MaxClassesPerDay:       req.Constraints.MaxClassesPerDay,
			MaxClassesPerWeek:      req.Constraints.MaxClassesPerWeek,
			MaxConsecutiveClasses:  req.Constraints.MaxConsecutiveClasses,
			RequireBreakAfterClass: req.Constraints.RequireBreakAfterClass,
		},
		StartDate:     calendar.DateKey(req.StartDate),
		RotationWeeks: req.RotationWeeks,
		PeriodsPerDay: req.PeriodsPerDay,
		TimeLimit:     timeLimit.Seconds(),
	}
	if !req.EndDate.IsZero() {
		w.EndDate = calendar.DateKey(req.EndDate)
	}

	for _, c := range req.Classes {
		w.Classes = append(w.Classes, wireClass{ID: c.ID, Name: c.Name, GradeLevel: c.GradeLevel})
		for _, cc := range c.Conflicts {
			days, ok := w.Conflicts[c.ID]
			if !ok {
				days = make(map[string][]int)
				w.Conflicts[c.ID] = days
			}
			days[cc.Weekday.String()] = calendar.NormalizePeriods(append(days[cc.Weekday.String()], cc.Periods...))
		}
	}

	for _, t := range req.TeacherAvailability {
		w.TeacherBlackouts = append(w.TeacherBlackouts, wireBlackout{
			Date:           calendar.DateKey(t.Date),
			BlockedPeriods: calendar.NormalizePeriods(t.BlockedPeriods),
		})
		if day, ok := calendar.FromTime(t.Date.Weekday()); ok {
			w.TeacherAvailability[day.String()] = calendar.NormalizePeriods(append(w.TeacherAvailability[day.String()], t.BlockedPeriods...))
		}
	}
	return w
}

func decodeAssignments(sol []wireAssignment) ([]calendar.Assignment, error) {
	out := make([]calendar.Assignment, 0, len(sol))
	for _, s := range sol {
		day, err := calendar.ParseWeekday(s.Day)
		if err != nil {
			return nil, err
		}
		out = append(out, calendar.Assignment{ClassID: s.ClassID, Weekday: day, Period: s.Period, Week: s.Week})
	}
	calendar.SortAssignments(out)
	return out, nil
}

// Generate 启动外部进程求解
func (s *Subprocess) Generate(ctx context.Context, req *Request) (*Result, error) {
	if err := req.check(); err != nil {
		return nil, err
	}
	if s.timeLimit > 0 {
		var cancel context.CancelFunc
		// 额外留出进程启动与序列化的余量
		ctx, cancel = context.WithTimeout(ctx, s.timeLimit+5*time.Second)
		defer cancel()
	}

	payload, err := json.Marshal(encodeRequest(req, s.timeLimit))
	if err != nil {
		return nil, fmt.Errorf("序列化求解请求: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	if stderr.Len() > 0 {
		s.logger.Debug("求解器 stderr", zap.String("output", strings.TrimSpace(stderr.String())))
	}
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return infeasible(&Result{NumClasses: len(req.Classes), SolveTime: elapsed}, "外部求解器超时")
		}
		s.logger.Error("外部求解器执行失败", zap.String("command", s.command), zap.Error(runErr))
		return nil, fmt.Errorf("执行外部求解器: %w", runErr)
	}

	var wr wireResult
	if err := json.Unmarshal(stdout.Bytes(), &wr); err != nil {
		return nil, fmt.Errorf("解析求解器输出: %w", err)
	}

	res := &Result{NumClasses: len(req.Classes), SolveTime: elapsed, Message: wr.Message}
	if wr.SolveTime > 0 {
		res.SolveTime = time.Duration(wr.SolveTime * float64(time.Second))
	}
	if wr.Status != string(StatusSuccess) {
		msg := wr.Message
		if msg == "" {
			msg = "外部求解器未找到可行解"
		}
		return infeasible(res, "%s", msg)
	}

	assignments, err := decodeAssignments(wr.Solution)
	if err != nil {
		return nil, fmt.Errorf("解析求解器输出: %w", err)
	}
	res.Status = StatusSuccess
	res.Assignments = assignments
	res.NumAssignments = len(assignments)

	s.logger.Info("外部求解完成",
		zap.Int("classes", len(req.Classes)),
		zap.Int("assignments", len(assignments)),
		zap.Duration("elapsed", elapsed))
	return res, nil
}
