package coordinator

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"thunder-scheduler/backend/internal/planner"
	"thunder-scheduler/backend/internal/validation"
)

// Status 调课最终结果
type Status string

const (
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
	// StatusStale 被更新的调课取代，结果被丢弃；不是错误
	StatusStale Status = "stale"
)

var moveOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "thunder_move_outcomes_total",
	Help: "Total number of settled slot moves by outcome",
}, []string{"status"})

// Outcome 一次调课的结算结果
type Outcome struct {
	Seq        uint64
	Move       planner.Move
	Status     Status
	Violations []validation.Violation
	// RevertTo 回滚时界面应将班级放回的位置
	RevertTo *planner.Position
	// Err 超时或持久化失败时非空
	Err error
}

// Accepted 是否已提交
func (o Outcome) Accepted() bool { return o.Status == StatusCommitted }

// Response 返回给界面的消息
type Response struct {
	Accepted   bool                   `json:"accepted"`
	Violations []validation.Violation `json:"violations,omitempty"`
	RevertTo   *planner.Position      `json:"revert_to,omitempty"`
}

// Response 转换为界面消息
func (o Outcome) Response() Response {
	return Response{Accepted: o.Accepted(), Violations: o.Violations, RevertTo: o.RevertTo}
}

// Ticket 一次 Propose 的凭据
type Ticket struct {
	Seq  uint64
	Move planner.Move

	done    chan struct{}
	outcome Outcome
}

func newTicket(seq uint64, m planner.Move) *Ticket {
	return &Ticket{Seq: seq, Move: m, done: make(chan struct{})}
}

func (t *Ticket) resolve(o Outcome) {
	t.outcome = o
	close(t.done)
}

// Done 结算后关闭
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait 阻塞直到结算或 ctx 结束
func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
