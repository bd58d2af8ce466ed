package validation

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

var defaultOrder = []Kind{
	KindSlotExclusivity,
	KindClassConflict,
	KindTeacherUnavailable,
	KindDailyLoad,
	KindWeeklyLoad,
	KindConsecutiveRun,
	KindBreakRequired,
}

// Orchestrator 并发运行全部分类器并合并为一份有序报告。
// 无副作用，可被多个 goroutine 共享。
type Orchestrator struct {
	classifiers []namedClassifier
}

// NewOrchestrator 使用七类默认分类器
func NewOrchestrator() *Orchestrator {
	all := DefaultClassifiers()
	cs := make([]namedClassifier, 0, len(defaultOrder))
	for _, k := range defaultOrder {
		cs = append(cs, namedClassifier{kind: k, fn: all[k]})
	}
	return &Orchestrator{classifiers: cs}
}

// Validate 对整套排课记录做一次全量校验。
// 报告只取决于输入内容，与记录顺序、调用次数无关；唯一的错误来源是 ctx 取消。
func (o *Orchestrator) Validate(ctx context.Context, in *Input) (*Report, error) {
	start := time.Now()

	results := make([][]Violation, len(o.classifiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range o.classifiers {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.fn(in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	violations := make([]Violation, 0, total)
	for _, r := range results {
		violations = append(violations, r...)
	}
	SortViolations(violations)

	report := &Report{
		Valid:          len(violations) == 0,
		Violations:     violations,
		NumAssignments: len(in.Assignments),
		NumClasses:     in.NumClasses,
	}
	observe(report, time.Since(start))
	return report, nil
}

var defaultOrchestrator = NewOrchestrator()

// Validate 使用默认分类器校验
func Validate(ctx context.Context, in *Input) (*Report, error) {
	return defaultOrchestrator.Validate(ctx, in)
}
