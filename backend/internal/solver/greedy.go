package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/validation"
)

// Greedy 进程内贪心生成器：可选时间格最少的班级优先，落在负载最轻的日子
type Greedy struct {
	timeLimit time.Duration
	logger    *zap.Logger
}

// NewGreedy 创建贪心生成器
func NewGreedy(timeLimit time.Duration, logger *zap.Logger) *Greedy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Greedy{timeLimit: timeLimit, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Generate 4 阶段贪心排课
// ════════════════════════════════════════════════════════════

func (g *Greedy) Generate(ctx context.Context, req *Request) (*Result, error) {
	if err := req.check(); err != nil {
		return nil, err
	}
	if g.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeLimit)
		defer cancel()
	}

	started := time.Now()
	res := &Result{NumClasses: len(req.Classes)}
	defer func() { res.SolveTime = time.Since(started) }()

	// ── 阶段1: 数据准备 ──

	capacity := req.RotationWeeks * len(calendar.Weekdays) * req.PeriodsPerDay
	if len(req.Classes) > capacity {
		return infeasible(res, "班级数 %d 超过可排时间格总数 %d", len(req.Classes), capacity)
	}

	var conflicts []calendar.ClassConflict
	for _, c := range req.Classes {
		for _, cc := range c.Conflicts {
			cc.ClassID = c.ID
			conflicts = append(conflicts, cc)
		}
	}
	conflictIdx := calendar.BuildConflictIndex(conflicts)
	blackouts := calendar.BuildBlackoutIndex(req.TeacherAvailability)

	var slots []calendar.Slot
	for week := 1; week <= req.RotationWeeks; week++ {
		for _, day := range calendar.Weekdays {
			for period := 1; period <= req.PeriodsPerDay; period++ {
				slots = append(slots, calendar.Slot{Weekday: day, Period: period, Week: week})
			}
		}
	}

	// ── 阶段2: 可用性矩阵构建 ──

	// 教师停课与班级无关，先算出每个时间格是否在任一日期被封锁
	teacherBlocked := make(map[calendar.Slot]bool, len(slots))
	for _, sl := range slots {
		for _, d := range calendar.SlotDates(req.StartDate, req.EndDate, req.RotationWeeks, sl.Weekday, sl.Week) {
			if blocked, _ := blackouts.Blocked(d, sl.Period); blocked {
				teacherBlocked[sl] = true
				break
			}
		}
	}

	type classInfo struct {
		class     calendar.Class
		available []calendar.Slot
	}
	infos := make([]classInfo, 0, len(req.Classes))
	for _, c := range req.Classes {
		info := classInfo{class: c}
		for _, sl := range slots {
			if teacherBlocked[sl] || conflictIdx.Blocked(c.ID, sl.Weekday, sl.Period) {
				continue
			}
			info.available = append(info.available, sl)
		}
		infos = append(infos, info)
	}

	// ── 阶段3: 贪心排课 ──

	// 可选时间格少的班级优先（最难排的优先），再按名称保证稳定
	sort.SliceStable(infos, func(i, j int) bool {
		if len(infos[i].available) != len(infos[j].available) {
			return len(infos[i].available) < len(infos[j].available)
		}
		if infos[i].class.Name != infos[j].class.Name {
			return infos[i].class.Name < infos[j].class.Name
		}
		return infos[i].class.ID < infos[j].class.ID
	})

	type dayOfWeek struct {
		week    int
		weekday calendar.Weekday
	}
	occupied := make(map[calendar.Slot]bool)
	dayLoad := make(map[dayOfWeek]int)
	weekLoad := make(map[int]int)

	var placed []calendar.Assignment
	var unplaced []string

	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return infeasible(res, "求解超时（已排 %d / %d 个班级）", len(placed), len(infos))
			}
			return nil, err
		}

		best, bestScore := calendar.Slot{}, -1
		for _, sl := range info.available {
			if occupied[sl] {
				continue
			}
			// 当日负载优先，其次本周负载（越小越优先）
			score := dayLoad[dayOfWeek{sl.Week, sl.Weekday}]*100 + weekLoad[sl.Week]*10
			if bestScore < 0 || score < bestScore {
				best, bestScore = sl, score
			}
		}
		if bestScore < 0 {
			unplaced = append(unplaced, info.class.Name)
			continue
		}

		occupied[best] = true
		dayLoad[dayOfWeek{best.Week, best.Weekday}]++
		weekLoad[best.Week]++
		placed = append(placed, calendar.Assignment{
			ClassID: info.class.ID,
			Weekday: best.Weekday,
			Period:  best.Period,
			Week:    best.Week,
		})
	}

	if len(unplaced) > 0 {
		sort.Strings(unplaced)
		return infeasible(res, "以下班级无可用时间格: %s", strings.Join(unplaced, ", "))
	}

	// ── 阶段4: 输出 ──

	calendar.SortAssignments(placed)
	report, err := validation.Validate(ctx, &validation.Input{
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		RotationWeeks:       req.RotationWeeks,
		Assignments:         placed,
		ClassConflicts:      calendar.MergeConflicts(conflicts),
		TeacherAvailability: req.TeacherAvailability,
		Constraints:         req.Constraints,
		NumClasses:          len(req.Classes),
	})
	if err != nil {
		return nil, fmt.Errorf("校验生成结果: %w", err)
	}
	if !report.Valid {
		return infeasible(res, "生成结果存在 %d 条违规", len(report.Violations))
	}

	res.Status = StatusSuccess
	res.Assignments = placed
	res.NumAssignments = len(placed)
	g.logger.Info("贪心排课完成",
		zap.Int("classes", len(req.Classes)),
		zap.Int("assignments", len(placed)),
		zap.Duration("elapsed", time.Since(started)))
	return res, nil
}
