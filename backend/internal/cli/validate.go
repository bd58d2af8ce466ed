package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/validation"
)

// ValidateInput 离线校验的输入文件格式
type ValidateInput struct {
	StartDate           string                `json:"start_date"`
	EndDate             string                `json:"end_date"`
	RotationWeeks       int                   `json:"rotation_weeks"`
	Constraints         *calendar.Constraints `json:"constraints"`
	Classes             []calendar.Class      `json:"classes"`
	TeacherAvailability []availabilityInput   `json:"teacher_availability"`
	Assignments         []calendar.Assignment `json:"assignments"`
}

type availabilityInput struct {
	Date           string `json:"date"`
	BlockedPeriods []int  `json:"blocked_periods"`
	Reason         string `json:"reason"`
}

// toValidation 组装校验输入
func (in *ValidateInput) toValidation() (*validation.Input, error) {
	start, err := calendar.ParseDate(in.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date 无效: %w", err)
	}
	end, err := calendar.ParseDate(in.EndDate)
	if err != nil {
		return nil, fmt.Errorf("end_date 无效: %w", err)
	}
	if end.Before(start) {
		return nil, calendar.ErrInvalidDateRange
	}

	constraints := calendar.DefaultConstraints()
	if in.Constraints != nil {
		constraints = *in.Constraints
	}
	if err := constraints.Validate(); err != nil {
		return nil, err
	}
	weeks := in.RotationWeeks
	if weeks <= 0 {
		weeks = 1
	}

	availability := make([]calendar.TeacherAvailability, 0, len(in.TeacherAvailability))
	for i, a := range in.TeacherAvailability {
		d, err := calendar.ParseDate(a.Date)
		if err != nil {
			return nil, fmt.Errorf("teacher_availability[%d].date 无效: %w", i, err)
		}
		availability = append(availability, calendar.TeacherAvailability{
			Date:           d,
			BlockedPeriods: calendar.NormalizePeriods(a.BlockedPeriods),
			Reason:         a.Reason,
		})
	}

	schedule := calendar.Schedule{
		StartDate:     start,
		EndDate:       end,
		RotationWeeks: weeks,
		Constraints:   constraints,
		Assignments:   in.Assignments,
	}
	return validation.NewInput(schedule, in.Classes, availability), nil
}

// NewValidateCommand 离线校验一份排课
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <input.json|->",
		Short: "离线校验一份排课（不连接服务）",
		Long: `离线校验一份排课，输入为 JSON 文件，"-" 表示从标准输入读取。

示例:
  schedctl validate plan.json
  cat plan.json | schedctl validate - --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, path string) error {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "打开输入文件失败", err)
		}
		defer f.Close()
		r = f
	}

	var in ValidateInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return WrapExitError(ExitCommandError, "解析输入失败", err)
	}
	vin, err := in.toValidation()
	if err != nil {
		return WrapExitError(ExitCommandError, "输入内容无效", err)
	}

	report, err := validation.NewOrchestrator().Validate(cmd.Context(), vin)
	if err != nil {
		return WrapExitError(ExitCommandError, "校验失败", err)
	}

	if err := opts.formatter(cmd).Emit(report, func(w io.Writer) { printReport(w, report) }); err != nil {
		return err
	}
	if !report.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("校验未通过，共 %d 条违规", len(report.Violations)))
	}
	return nil
}

func printReport(w io.Writer, report *validation.Report) {
	if report.Valid {
		fmt.Fprintf(w, "✓ 校验通过（%d 条排课，%d 个班级）\n", report.NumAssignments, report.NumClasses)
		return
	}
	fmt.Fprintf(w, "✗ 发现 %d 条违规（%d 条排课，%d 个班级）\n", len(report.Violations), report.NumAssignments, report.NumClasses)
	for _, v := range report.Violations {
		fmt.Fprintf(w, "  [%s] %s\n", v.Kind, v.Message)
	}
}
