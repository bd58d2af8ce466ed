package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"thunder-scheduler/backend/internal/client"
	"thunder-scheduler/backend/internal/coordinator"
	"thunder-scheduler/backend/internal/planner"
)

// MoveOptions move 命令参数
type MoveOptions struct {
	*RootOptions
	Server   string
	Token    string
	Username string
	Password string
	Week     int
	Timeout  time.Duration
}

// MoveResult 单次调课的输出
type MoveResult struct {
	Move    string               `json:"move"`
	Seq     uint64               `json:"seq"`
	Status  coordinator.Status   `json:"status"`
	Result  coordinator.Response `json:"result"`
	Message string               `json:"error,omitempty"`
}

// NewMoveCommand 通过协调器对运行中的服务执行调课
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "move <schedule-id> <class-id>:<FROM>:<TO>...",
		Short: "调课：乐观写入、远端校验、提交或回滚",
		Long: `对运行中的服务执行一次或多次调课。FROM / TO 为时间格标识，如 MONDAY-3。
多次调课按顺序连续发起，只有最后一次的校验结果会被采纳，之前的结果被丢弃。

示例:
  schedctl move 5f0c... c-1:MONDAY-1:TUESDAY-3 --week 1 --token $THUNDER_TOKEN
  schedctl move 5f0c... c-1:MONDAY-1:TUESDAY-3 --username scheduler --password ***`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(opts, cmd, args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "", "服务地址（默认取 coordinator.base_url）")
	cmd.Flags().StringVar(&opts.Token, "token", os.Getenv("THUNDER_TOKEN"), "Access Token（默认读取 THUNDER_TOKEN）")
	cmd.Flags().StringVar(&opts.Username, "username", "", "编辑账号，未提供 token 时用于登录")
	cmd.Flags().StringVar(&opts.Password, "password", "", "编辑账号密码")
	cmd.Flags().IntVar(&opts.Week, "week", 1, "轮换周次")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "校验与提交各自的时限（默认取 coordinator.timeout）")

	return cmd
}

func runMove(opts *MoveOptions, cmd *cobra.Command, scheduleID string, specs []string) error {
	if err := opts.resolveServer(); err != nil {
		return err
	}
	logger := opts.newLogger()
	defer logger.Sync()

	ctx := cmd.Context()
	api := client.New(opts.Server, 2*opts.Timeout, client.WithToken(opts.Token), client.WithLogger(logger))
	if opts.Token == "" {
		if opts.Username == "" {
			return NewExitError(ExitCommandError, "请提供 --token 或 --username / --password")
		}
		if _, err := api.Login(ctx, opts.Username, opts.Password); err != nil {
			return WrapExitError(ExitCommandError, "登录失败", err)
		}
	}

	schedule, err := api.GetSchedule(ctx, scheduleID)
	if err != nil {
		return WrapExitError(ExitCommandError, "读取排课方案失败", err)
	}

	p := planner.New(schedule.PeriodsPerDay, schedule.RotationWeeks)
	moves := make([]*planner.Move, 0, len(specs))
	for _, spec := range specs {
		evt, err := parseMoveSpec(spec, opts.Week)
		if err != nil {
			return WrapExitError(ExitCommandError, "调课参数无效", err)
		}
		m, err := p.FromDrop(evt)
		if err != nil {
			return WrapExitError(ExitCommandError, "调课参数无效", err)
		}
		moves = append(moves, m)
	}

	co := coordinator.New(scheduleID, schedule.Assignments, api, api, coordinator.Options{
		Timeout: opts.Timeout,
		Logger:  logger,
	})

	tickets := make([]*coordinator.Ticket, 0, len(moves))
	for _, m := range moves {
		t, err := co.Propose(ctx, *m)
		if err != nil {
			return WrapExitError(ExitCommandError, "调课失败", err)
		}
		tickets = append(tickets, t)
	}

	results := make([]MoveResult, 0, len(tickets))
	for _, t := range tickets {
		o, err := t.Wait(context.WithoutCancel(ctx))
		if err != nil {
			return err
		}
		r := MoveResult{Move: o.Move.String(), Seq: o.Seq, Status: o.Status, Result: o.Response()}
		if o.Err != nil {
			r.Message = o.Err.Error()
		}
		results = append(results, r)
	}
	co.Wait()

	if err := opts.formatter(cmd).Emit(results, func(w io.Writer) { printMoves(w, results) }); err != nil {
		return err
	}
	if last := results[len(results)-1]; last.Status != coordinator.StatusCommitted {
		return NewExitError(ExitFailure, "调课未被接受，已回滚")
	}
	return nil
}

// resolveServer 未显式指定服务地址或时限时从配置文件读取
func (o *MoveOptions) resolveServer() error {
	if o.Server != "" && o.Timeout > 0 {
		return nil
	}
	cfg, err := o.loadConfig()
	if err != nil {
		if o.Server == "" {
			return err
		}
		o.Timeout = coordinator.DefaultTimeout
		return nil
	}
	if o.Server == "" {
		o.Server = cfg.Coordinator.BaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = cfg.Coordinator.Timeout
	}
	return nil
}

// parseMoveSpec 解析 class-id:FROM:TO
func parseMoveSpec(spec string, week int) (planner.DropEvent, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return planner.DropEvent{}, fmt.Errorf("格式应为 class-id:FROM:TO，实际 %q", spec)
	}
	return planner.DropEvent{ClassID: parts[0], Source: parts[1], Destination: parts[2], Week: week}, nil
}

func printMoves(w io.Writer, results []MoveResult) {
	for _, r := range results {
		switch r.Status {
		case coordinator.StatusCommitted:
			fmt.Fprintf(w, "✓ #%d %s 已提交\n", r.Seq, r.Move)
		case coordinator.StatusStale:
			fmt.Fprintf(w, "- #%d %s 已被后续调课取代\n", r.Seq, r.Move)
		default:
			fmt.Fprintf(w, "✗ #%d %s 已回滚", r.Seq, r.Move)
			if r.Result.RevertTo != nil {
				fmt.Fprintf(w, "，恢复到 %s", r.Result.RevertTo)
			}
			fmt.Fprintln(w)
			if r.Message != "" {
				fmt.Fprintf(w, "  原因: %s\n", r.Message)
			}
			for _, v := range r.Result.Violations {
				fmt.Fprintf(w, "  [%s] %s\n", v.Kind, v.Message)
			}
		}
	}
}
