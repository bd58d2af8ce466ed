// Package coordinator 实现单格调课的乐观并发协议：
// 先改本地缓存，再整套校验，最后提交或回滚；只认最新序号的结果。
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/planner"
	"thunder-scheduler/backend/internal/validation"
)

// ── 调课协调业务错误 ──

var (
	ErrSourceNotFound        = errors.New("缓存中不存在待移动的排课记录")
	ErrMoveTimeout           = errors.New("调课确认超时")
	ErrValidationUnavailable = errors.New("校验服务不可用")
	ErrPersistence           = errors.New("排课保存失败")
)

// DefaultTimeout 校验与提交各自的往返时限
const DefaultTimeout = 5 * time.Second

// Validator 对整套候选排课做全量校验
type Validator interface {
	Validate(ctx context.Context, scheduleID string, assignments []calendar.Assignment) (*validation.Report, error)
}

// Committer 以整套替换的方式持久化排课
type Committer interface {
	ReplaceAssignments(ctx context.Context, scheduleID string, assignments []calendar.Assignment) error
}

// State 协调器状态
type State string

const (
	StateIdle       State = "idle"
	StateProposed   State = "proposed"
	StateValidating State = "validating"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
)

// Options 可选参数
type Options struct {
	Timeout  time.Duration
	Logger   *zap.Logger
	OnSettle func(Outcome)
}

// Coordinator 单写者调课协调器。Propose 不阻塞调用方，结果经 Ticket 或 OnSettle 异步送达。
type Coordinator struct {
	scheduleID string
	validator  Validator
	committer  Committer
	timeout    time.Duration
	logger     *zap.Logger
	onSettle   func(Outcome)

	cache *Cache

	mu      sync.Mutex
	seq     uint64
	state   State
	settled []calendar.Assignment

	// 提交与回滚串行化：落库顺序与序号一致，回滚总能看到最新的 settled
	commitMu sync.Mutex
	wg       sync.WaitGroup
}

// New 创建协调器，initial 为已落库的排课记录
func New(scheduleID string, initial []calendar.Assignment, v Validator, c Committer, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Coordinator{
		scheduleID: scheduleID,
		validator:  v,
		committer:  c,
		timeout:    opts.Timeout,
		logger:     opts.Logger.With(zap.String("schedule_id", scheduleID)),
		onSettle:   opts.OnSettle,
		cache:      NewCache(initial),
		state:      StateIdle,
		settled:    calendar.CloneAssignments(initial),
	}
}

// Cache 界面渲染使用的本地缓存
func (c *Coordinator) Cache() *Cache { return c.cache }

// State 当前状态
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Settled 最近一次确认落库的排课记录
func (c *Coordinator) Settled() []calendar.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return calendar.CloneAssignments(c.settled)
}

// Wait 等待所有在途调课结束
func (c *Coordinator) Wait() { c.wg.Wait() }

// Propose 乐观应用一次调课并发起异步校验。
// 返回后缓存已反映本次调课；若源记录不在缓存中则返回 ErrSourceNotFound，缓存不变。
func (c *Coordinator) Propose(ctx context.Context, move planner.Move) (*Ticket, error) {
	c.mu.Lock()
	idx := c.cache.find(move.Source())
	if idx < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, move.Source().Slot())
	}
	c.state = StateProposed
	candidate := c.cache.replaceAt(idx, move.Target())
	c.seq++
	t := newTicket(c.seq, move)
	c.state = StateValidating
	c.mu.Unlock()

	c.logger.Debug("调课已乐观写入", zap.Uint64("seq", t.Seq), zap.Stringer("move", move))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.settle(t, c.run(context.WithoutCancel(ctx), t, candidate))
	}()
	return t, nil
}

func (c *Coordinator) latest(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq == seq
}

// run 校验 → 提交，返回最终结果
func (c *Coordinator) run(ctx context.Context, t *Ticket, candidate []calendar.Assignment) Outcome {
	report, err := within(ctx, c.timeout, func(vctx context.Context) (*validation.Report, error) {
		return c.validator.Validate(vctx, c.scheduleID, candidate)
	})

	// 旧序号的校验结果直接丢弃，不回滚也不落库
	if !c.latest(t.Seq) {
		return c.stale(t)
	}

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return c.rollbackAfterCommits(t, []validation.Violation{unconfirmed(t.Move, "校验超时")},
			fmt.Errorf("%w: %v", ErrMoveTimeout, err))
	case err != nil:
		return c.rollbackAfterCommits(t, []validation.Violation{unconfirmed(t.Move, "校验服务不可用")},
			fmt.Errorf("%w: %w", ErrValidationUnavailable, err))
	case !report.Valid:
		return c.rollbackAfterCommits(t, report.Violations, nil)
	}

	return c.commit(ctx, t, candidate)
}

// within 在 d 内等待 fn 返回；超时即返回 context.DeadlineExceeded，不依赖 fn 响应 ctx。
// 超时后 fn 的迟到结果被丢弃。
func within[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-cctx.Done():
		var zero T
		return zero, cctx.Err()
	}
}

func (c *Coordinator) commit(ctx context.Context, t *Ticket, candidate []calendar.Assignment) Outcome {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if !c.latest(t.Seq) {
		return c.stale(t)
	}

	_, err := within(ctx, c.timeout, func(cctx context.Context) (struct{}, error) {
		return struct{}{}, c.committer.ReplaceAssignments(cctx, c.scheduleID, candidate)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.rollback(t, []validation.Violation{unconfirmed(t.Move, "保存超时")},
				fmt.Errorf("%w: %v", ErrMoveTimeout, err))
		}
		return c.rollback(t, nil, fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.settled = calendar.CloneAssignments(candidate)
	if c.seq != t.Seq {
		// 已落库，但期间出现了更新的调课，由后者决定缓存
		return Outcome{Seq: t.Seq, Move: t.Move, Status: StatusStale}
	}
	c.state = StateCommitted
	return Outcome{Seq: t.Seq, Move: t.Move, Status: StatusCommitted}
}

// rollbackAfterCommits 等在途提交结束后再回滚，使恢复目标包含其刚落库的结果
func (c *Coordinator) rollbackAfterCommits(t *Ticket, violations []validation.Violation, err error) Outcome {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	return c.rollback(t, violations, err)
}

// rollback 仅当 t 仍是最新调课时把缓存恢复到最近一次确认的状态，调用方须持有 commitMu
func (c *Coordinator) rollback(t *Ticket, violations []validation.Violation, err error) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != t.Seq {
		return Outcome{Seq: t.Seq, Move: t.Move, Status: StatusStale}
	}
	c.cache.restore(c.settled)
	c.state = StateRolledBack
	from := t.Move.From
	return Outcome{
		Seq:        t.Seq,
		Move:       t.Move,
		Status:     StatusRolledBack,
		Violations: violations,
		RevertTo:   &from,
		Err:        err,
	}
}

func (c *Coordinator) stale(t *Ticket) Outcome {
	return Outcome{Seq: t.Seq, Move: t.Move, Status: StatusStale}
}

func (c *Coordinator) settle(t *Ticket, o Outcome) {
	moveOutcomes.WithLabelValues(string(o.Status)).Inc()

	fields := []zap.Field{zap.Uint64("seq", o.Seq), zap.String("status", string(o.Status)), zap.Stringer("move", o.Move)}
	switch {
	case o.Err != nil:
		c.logger.Warn("调课已回滚", append(fields, zap.Error(o.Err))...)
	case o.Status == StatusRolledBack:
		c.logger.Info("调课校验未通过，已回滚", append(fields, zap.Int("violations", len(o.Violations)))...)
	case o.Status == StatusStale:
		c.logger.Debug("丢弃过期调课结果", fields...)
	default:
		c.logger.Info("调课已提交", fields...)
	}

	t.resolve(o)
	if c.onSettle != nil {
		c.onSettle(o)
	}
}

func unconfirmed(m planner.Move, reason string) validation.Violation {
	return validation.Violation{
		Kind:     validation.KindMoveUnconfirmed,
		Message:  fmt.Sprintf("调课未能确认（%s），已恢复到原位置", reason),
		ClassID:  m.ClassID,
		ClassIDs: []string{m.ClassID},
		Weekday:  m.To.Weekday,
		Period:   m.To.Period,
		Week:     m.Week,
	}
}
