package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/planner"
	"thunder-scheduler/backend/internal/validation"
)

// ── 测试替身 ──

type fakeValidator struct {
	calls  atomic.Int32
	before func(ctx context.Context, as []calendar.Assignment) error
}

func (v *fakeValidator) Validate(ctx context.Context, _ string, as []calendar.Assignment) (*validation.Report, error) {
	v.calls.Add(1)
	if v.before != nil {
		if err := v.before(ctx, as); err != nil {
			return nil, err
		}
	}
	return validation.Validate(ctx, &validation.Input{
		StartDate:     time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		RotationWeeks: 1,
		Assignments:   as,
		Constraints:   calendar.DefaultConstraints(),
	})
}

type fakeCommitter struct {
	mu    sync.Mutex
	sets  [][]calendar.Assignment
	err   error
	delay time.Duration
}

func (c *fakeCommitter) ReplaceAssignments(ctx context.Context, _ string, as []calendar.Assignment) error {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sets = append(c.sets, calendar.CloneAssignments(as))
	return nil
}

func (c *fakeCommitter) commits() [][]calendar.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func initial() []calendar.Assignment {
	return []calendar.Assignment{
		{ClassID: "C1", Weekday: calendar.Monday, Period: 1, Week: 1},
		{ClassID: "C2", Weekday: calendar.Tuesday, Period: 2, Week: 1},
	}
}

// holds 判断候选集合中某班级是否位于指定时间格（第 1 周）
func holds(as []calendar.Assignment, class string, day calendar.Weekday, period int) bool {
	for _, a := range as {
		if a.ClassID == class && a.Weekday == day && a.Period == period && a.Week == 1 {
			return true
		}
	}
	return false
}

func move(class string, fromDay calendar.Weekday, fromPeriod int, toDay calendar.Weekday, toPeriod int) planner.Move {
	return planner.Move{
		ClassID: class,
		From:    planner.Position{Weekday: fromDay, Period: fromPeriod},
		To:      planner.Position{Weekday: toDay, Period: toPeriod},
		Week:    1,
	}
}

func wait(t *testing.T, tk *Ticket) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o, err := tk.Wait(ctx)
	require.NoError(t, err)
	return o
}

// ── 用例 ──

func TestProposeCommits(t *testing.T) {
	v, cm := &fakeValidator{}, &fakeCommitter{}
	c := New("s1", initial(), v, cm, Options{})

	m := move("C1", calendar.Monday, 1, calendar.Wednesday, 4)
	tk, err := c.Propose(context.Background(), m)
	require.NoError(t, err)

	// 乐观写入立即可见
	assert.Contains(t, c.Cache().Assignments(), m.Target())

	o := wait(t, tk)
	assert.Equal(t, StatusCommitted, o.Status)
	assert.True(t, o.Accepted())
	assert.NoError(t, o.Err)
	assert.Equal(t, StateCommitted, c.State())

	want := []calendar.Assignment{m.Target(), initial()[1]}
	assert.Equal(t, want, c.Cache().Assignments())
	assert.Equal(t, want, c.Settled())
	require.Len(t, cm.commits(), 1)
	assert.Equal(t, want, cm.commits()[0])
}

func TestRejectedMoveRollsBack(t *testing.T) {
	v, cm := &fakeValidator{}, &fakeCommitter{}
	c := New("s1", initial(), v, cm, Options{})

	// C2 已占用周二第 2 节
	tk, err := c.Propose(context.Background(), move("C1", calendar.Monday, 1, calendar.Tuesday, 2))
	require.NoError(t, err)

	o := wait(t, tk)
	assert.Equal(t, StatusRolledBack, o.Status)
	assert.False(t, o.Accepted())
	assert.NoError(t, o.Err)
	require.NotEmpty(t, o.Violations)
	assert.Equal(t, validation.KindSlotExclusivity, o.Violations[0].Kind)
	require.NotNil(t, o.RevertTo)
	assert.Equal(t, planner.Position{Weekday: calendar.Monday, Period: 1}, *o.RevertTo)

	assert.Equal(t, initial(), c.Cache().Assignments())
	assert.Equal(t, StateRolledBack, c.State())
	assert.Empty(t, cm.commits())

	resp := o.Response()
	assert.False(t, resp.Accepted)
	assert.Equal(t, o.Violations, resp.Violations)
}

func TestStaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	// 只阻塞 M1 的校验：M1 的候选集合中 C2 仍在周二第 2 节
	v := &fakeValidator{before: func(ctx context.Context, as []calendar.Assignment) error {
		if holds(as, "C2", calendar.Tuesday, 2) {
			<-release
		}
		return nil
	}}
	cm := &fakeCommitter{}
	c := New("s1", initial(), v, cm, Options{})

	m1 := move("C1", calendar.Monday, 1, calendar.Wednesday, 1)
	t1, err := c.Propose(context.Background(), m1)
	require.NoError(t, err)

	m2 := move("C2", calendar.Tuesday, 2, calendar.Thursday, 3)
	t2, err := c.Propose(context.Background(), m2)
	require.NoError(t, err)
	assert.Greater(t, t2.Seq, t1.Seq)

	o2 := wait(t, t2)
	require.Equal(t, StatusCommitted, o2.Status)
	afterM2 := c.Cache().Assignments()

	close(release)
	o1 := wait(t, t1)
	assert.Equal(t, StatusStale, o1.Status)
	assert.NoError(t, o1.Err)
	assert.Nil(t, o1.RevertTo)

	assert.Equal(t, afterM2, c.Cache().Assignments())
	assert.Contains(t, afterM2, m2.Target())
	require.Len(t, cm.commits(), 1)
	assert.Equal(t, afterM2, cm.commits()[0])
	assert.Equal(t, StateCommitted, c.State())
}

func TestStaleRejectionDoesNotRollBackNewerMove(t *testing.T) {
	release := make(chan struct{})
	// 只阻塞 M1 的校验：M1 的候选集合中 C2 仍在周二第 2 节
	v := &fakeValidator{before: func(ctx context.Context, as []calendar.Assignment) error {
		if holds(as, "C2", calendar.Tuesday, 2) {
			<-release
		}
		return nil
	}}
	c := New("s1", initial(), v, &fakeCommitter{}, Options{})

	// M1 无效（与 C2 冲突），但响应晚于 M2 返回
	t1, err := c.Propose(context.Background(), move("C1", calendar.Monday, 1, calendar.Tuesday, 2))
	require.NoError(t, err)
	t2, err := c.Propose(context.Background(), move("C2", calendar.Tuesday, 2, calendar.Friday, 8))
	require.NoError(t, err)

	require.Equal(t, StatusCommitted, wait(t, t2).Status)
	close(release)
	assert.Equal(t, StatusStale, wait(t, t1).Status)
	assert.Equal(t, c.Settled(), c.Cache().Assignments())
}

func TestValidationTimeout(t *testing.T) {
	v := &fakeValidator{before: func(ctx context.Context, _ []calendar.Assignment) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	cm := &fakeCommitter{}
	c := New("s1", initial(), v, cm, Options{Timeout: 20 * time.Millisecond})

	tk, err := c.Propose(context.Background(), move("C1", calendar.Monday, 1, calendar.Friday, 1))
	require.NoError(t, err)

	o := wait(t, tk)
	assert.Equal(t, StatusRolledBack, o.Status)
	assert.ErrorIs(t, o.Err, ErrMoveTimeout)
	require.Len(t, o.Violations, 1)
	assert.Equal(t, validation.KindMoveUnconfirmed, o.Violations[0].Kind)
	assert.Equal(t, initial(), c.Cache().Assignments())
	assert.Empty(t, cm.commits())
}

func TestValidatorErrorRollsBack(t *testing.T) {
	boom := errors.New("connection refused")
	v := &fakeValidator{before: func(context.Context, []calendar.Assignment) error { return boom }}
	c := New("s1", initial(), v, &fakeCommitter{}, Options{})

	tk, err := c.Propose(context.Background(), move("C1", calendar.Monday, 1, calendar.Friday, 1))
	require.NoError(t, err)

	o := wait(t, tk)
	assert.Equal(t, StatusRolledBack, o.Status)
	assert.ErrorIs(t, o.Err, ErrValidationUnavailable)
	assert.ErrorIs(t, o.Err, boom)
	assert.Equal(t, initial(), c.Cache().Assignments())
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	dbErr := errors.New("deadlock detected")
	cm := &fakeCommitter{err: dbErr}
	c := New("s1", initial(), &fakeValidator{}, cm, Options{})

	tk, err := c.Propose(context.Background(), move("C1", calendar.Monday, 1, calendar.Friday, 1))
	require.NoError(t, err)

	o := wait(t, tk)
	assert.Equal(t, StatusRolledBack, o.Status)
	assert.ErrorIs(t, o.Err, ErrPersistence)
	assert.ErrorIs(t, o.Err, dbErr)
	assert.Empty(t, o.Violations)
	assert.Equal(t, initial(), c.Cache().Assignments())
	assert.Equal(t, initial(), c.Settled())
}

func TestCommitTimeout(t *testing.T) {
	cm := &fakeCommitter{delay: time.Second}
	c := New("s1", initial(), &fakeValidator{}, cm, Options{Timeout: 20 * time.Millisecond})

	tk, err := c.Propose(context.Background(), move("C1", calendar.Monday, 1, calendar.Friday, 1))
	require.NoError(t, err)

	o := wait(t, tk)
	assert.Equal(t, StatusRolledBack, o.Status)
	assert.ErrorIs(t, o.Err, ErrMoveTimeout)
	assert.Equal(t, initial(), c.Cache().Assignments())
}

func TestProposeUnknownSource(t *testing.T) {
	v := &fakeValidator{}
	c := New("s1", initial(), v, &fakeCommitter{}, Options{})

	_, err := c.Propose(context.Background(), move("C1", calendar.Thursday, 5, calendar.Friday, 1))
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.Equal(t, initial(), c.Cache().Assignments())
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, v.calls.Load())
}

func TestOnSettleHook(t *testing.T) {
	var got []Outcome
	var mu sync.Mutex
	c := New("s1", initial(), &fakeValidator{}, &fakeCommitter{}, Options{OnSettle: func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, o)
	}})

	_, err := c.Propose(context.Background(), move("C1", calendar.Monday, 1, calendar.Friday, 1))
	require.NoError(t, err)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, StatusCommitted, got[0].Status)
	assert.True(t, got[0].Response().Accepted)
}

func TestCancelledCallerContextDoesNotAbortMove(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New("s1", initial(), &fakeValidator{}, &fakeCommitter{}, Options{})

	tk, err := c.Propose(ctx, move("C1", calendar.Monday, 1, calendar.Friday, 1))
	require.NoError(t, err)
	cancel()

	assert.Equal(t, StatusCommitted, wait(t, tk).Status)
}

// gateCommitter 在 ReplaceAssignments 内停住，直到 release 关闭
type gateCommitter struct {
	fakeCommitter
	entered chan struct{}
	release chan struct{}
}

func (g *gateCommitter) ReplaceAssignments(ctx context.Context, id string, as []calendar.Assignment) error {
	g.entered <- struct{}{}
	<-g.release
	return g.fakeCommitter.ReplaceAssignments(ctx, id, as)
}

func TestRejectionDuringInFlightCommitKeepsCommittedMove(t *testing.T) {
	cm := &gateCommitter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := New("s1", initial(), &fakeValidator{}, cm, Options{})

	// M1 合法，提交途中停住
	m1 := move("C1", calendar.Monday, 1, calendar.Wednesday, 4)
	t1, err := c.Propose(context.Background(), m1)
	require.NoError(t, err)
	<-cm.entered

	// M2 与 M1 的新位置冲突，校验很快被拒
	t2, err := c.Propose(context.Background(), move("C2", calendar.Tuesday, 2, calendar.Wednesday, 4))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	close(cm.release)

	assert.Equal(t, StatusStale, wait(t, t1).Status)
	o2 := wait(t, t2)
	assert.Equal(t, StatusRolledBack, o2.Status)

	// 回滚目标是 M2 提出前的状态，即已落库的 M1
	want := []calendar.Assignment{m1.Target(), initial()[1]}
	assert.Equal(t, want, c.Settled())
	assert.Equal(t, want, c.Cache().Assignments())
	require.Len(t, cm.commits(), 1)
	assert.Equal(t, want, cm.commits()[0])
}

// 校验方与提交方不理会 ctx 时，超时仍由协调器自行判定
type stuckValidator struct{ release chan struct{} }

func (v *stuckValidator) Validate(context.Context, string, []calendar.Assignment) (*validation.Report, error) {
	<-v.release
	return &validation.Report{Valid: true}, nil
}

type stuckCommitter struct{ release chan struct{} }

func (c *stuckCommitter) ReplaceAssignments(context.Context, string, []calendar.Assignment) error {
	<-c.release
	return nil
}

func TestValidationTimeout_ValidatorIgnoresContext(t *testing.T) {
	v := &stuckValidator{release: make(chan struct{})}
	t.Cleanup(func() { close(v.release) })
	cm := &fakeCommitter{}
	c := New("s1", initial(), v, cm, Options{Timeout: 50 * time.Millisecond})

	tk, err := c.Propose(context.Background(), move("C1", calendar.Monday, 1, calendar.Friday, 1))
	require.NoError(t, err)

	start := time.Now()
	o := wait(t, tk)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusRolledBack, o.Status)
	assert.ErrorIs(t, o.Err, ErrMoveTimeout)
	require.Len(t, o.Violations, 1)
	assert.Equal(t, validation.KindMoveUnconfirmed, o.Violations[0].Kind)
	assert.Equal(t, initial(), c.Cache().Assignments())
	assert.Empty(t, cm.commits())
}

func TestCommitTimeout_CommitterIgnoresContext(t *testing.T) {
	cm := &stuckCommitter{release: make(chan struct{})}
	t.Cleanup(func() { close(cm.release) })
	c := New("s1", initial(), &fakeValidator{}, cm, Options{Timeout: 50 * time.Millisecond})

	tk, err := c.Propose(context.Background(), move("C1", calendar.Monday, 1, calendar.Friday, 1))
	require.NoError(t, err)

	o := wait(t, tk)
	assert.Equal(t, StatusRolledBack, o.Status)
	assert.ErrorIs(t, o.Err, ErrMoveTimeout)
	assert.Equal(t, initial(), c.Cache().Assignments())
	assert.Equal(t, StateRolledBack, c.State())
}
