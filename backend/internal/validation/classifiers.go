package validation

import (
	"fmt"
	"sort"
	"strings"

	"thunder-scheduler/backend/internal/calendar"
)

// Classifier 纯函数：输入相同则输出的违规集合相同，与记录顺序无关
type Classifier func(in *Input) []Violation

type namedClassifier struct {
	kind Kind
	fn   Classifier
}

// DefaultClassifiers 七类规则，顺序不影响最终报告
func DefaultClassifiers() map[Kind]Classifier {
	return map[Kind]Classifier{
		KindSlotExclusivity:    SlotExclusivity,
		KindClassConflict:      ClassConflicts,
		KindTeacherUnavailable: TeacherUnavailable,
		KindDailyLoad:          DailyLoad,
		KindWeeklyLoad:         WeeklyLoad,
		KindConsecutiveRun:     ConsecutiveRuns,
		KindBreakRequired:      BreakRequired,
	}
}

// ── 分组工具 ──

type dayKey struct {
	classID string
	weekday calendar.Weekday
	week    int
}

type weekKey struct {
	classID string
	week    int
}

// dayPeriods 按 (班级, 星期, 周次) 收集去重后的升序节次
func dayPeriods(as []calendar.Assignment) map[dayKey][]int {
	raw := make(map[dayKey][]int)
	for _, a := range as {
		k := dayKey{classID: a.ClassID, weekday: a.Weekday, week: a.Week}
		raw[k] = append(raw[k], a.Period)
	}
	for k, ps := range raw {
		raw[k] = calendar.NormalizePeriods(ps)
	}
	return raw
}

// runs 将升序节次切分为极大连续段
func runs(periods []int) [][]int {
	var out [][]int
	for i, p := range periods {
		if i == 0 || p != periods[i-1]+1 {
			out = append(out, []int{p})
			continue
		}
		out[len(out)-1] = append(out[len(out)-1], p)
	}
	return out
}

func span(periods []int) []int {
	out := make([]int, len(periods))
	copy(out, periods)
	return out
}

// ════════════════════════════════════════════════════════════
// 时间格独占：每个时间格至多一个班级
// ════════════════════════════════════════════════════════════

// SlotExclusivity 同一时间格出现多条记录时，除班级 ID 最小者外每条记录各产生一条违规
func SlotExclusivity(in *Input) []Violation {
	bySlot := make(map[calendar.Slot][]string)
	for _, a := range in.Assignments {
		bySlot[a.Slot()] = append(bySlot[a.Slot()], a.ClassID)
	}

	var out []Violation
	for slot, ids := range bySlot {
		if len(ids) < 2 {
			continue
		}
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		msg := fmt.Sprintf("%s第%d节（第%d周）被 %d 个班级同时占用: %s",
			slot.Weekday.Label(), slot.Period, slot.Week, len(sorted), strings.Join(sorted, ", "))
		for _, excess := range sorted[1:] {
			out = append(out, Violation{
				Kind:     KindSlotExclusivity,
				Message:  msg,
				ClassID:  excess,
				ClassIDs: sorted,
				Weekday:  slot.Weekday,
				Period:   slot.Period,
				Week:     slot.Week,
			})
		}
	}
	return out
}

// ════════════════════════════════════════════════════════════
// 班级不可排时段（与周次无关）
// ════════════════════════════════════════════════════════════

func ClassConflicts(in *Input) []Violation {
	idx := calendar.BuildConflictIndex(in.ClassConflicts)

	var out []Violation
	for _, a := range in.Assignments {
		if !idx.Blocked(a.ClassID, a.Weekday, a.Period) {
			continue
		}
		out = append(out, Violation{
			Kind:     KindClassConflict,
			Message:  fmt.Sprintf("班级 %s 在%s第%d节不可排课", a.ClassID, a.Weekday.Label(), a.Period),
			ClassID:  a.ClassID,
			ClassIDs: []string{a.ClassID},
			Weekday:  a.Weekday,
			Period:   a.Period,
			Week:     a.Week,
		})
	}
	return out
}

// ════════════════════════════════════════════════════════════
// 教师停课：时间格映射到具体日期后检查
// ════════════════════════════════════════════════════════════

// TeacherUnavailable 每个命中停课的日期各产生一条违规。
// 设置了 EndDate 时，(星期, 轮换周) 在区间内的每一轮重复日期都要检查，
// 后续轮次的停课同样计入；EndDate 为零值时只检查首次出现的日期。
func TeacherUnavailable(in *Input) []Violation {
	if len(in.TeacherAvailability) == 0 {
		return nil
	}
	idx := calendar.BuildBlackoutIndex(in.TeacherAvailability)

	var out []Violation
	for _, a := range in.Assignments {
		for _, d := range calendar.SlotDates(in.StartDate, in.EndDate, in.RotationWeeks, a.Weekday, a.Week) {
			blocked, reason := idx.Blocked(d, a.Period)
			if !blocked {
				continue
			}
			msg := fmt.Sprintf("教师在 %s 第%d节停课，班级 %s 无法上课", calendar.DateKey(d), a.Period, a.ClassID)
			if reason != "" {
				msg += "（" + reason + "）"
			}
			out = append(out, Violation{
				Kind:     KindTeacherUnavailable,
				Message:  msg,
				ClassID:  a.ClassID,
				ClassIDs: []string{a.ClassID},
				Weekday:  a.Weekday,
				Period:   a.Period,
				Week:     a.Week,
				Date:     calendar.DateKey(d),
			})
		}
	}
	return out
}

// ════════════════════════════════════════════════════════════
// 负载上限
// ════════════════════════════════════════════════════════════

func DailyLoad(in *Input) []Violation {
	limit := in.Constraints.MaxClassesPerDay
	counts := make(map[dayKey]int)
	for _, a := range in.Assignments {
		counts[dayKey{classID: a.ClassID, weekday: a.Weekday, week: a.Week}]++
	}

	var out []Violation
	for k, n := range counts {
		if n <= limit {
			continue
		}
		out = append(out, Violation{
			Kind:     KindDailyLoad,
			Message:  fmt.Sprintf("班级 %s 第%d周%s排了 %d 节，超出每日上限 %d 节", k.classID, k.week, k.weekday.Label(), n, limit),
			ClassID:  k.classID,
			ClassIDs: []string{k.classID},
			Weekday:  k.weekday,
			Week:     k.week,
			Count:    n,
			Limit:    limit,
		})
	}
	return out
}

func WeeklyLoad(in *Input) []Violation {
	limit := in.Constraints.MaxClassesPerWeek
	counts := make(map[weekKey]int)
	for _, a := range in.Assignments {
		counts[weekKey{classID: a.ClassID, week: a.Week}]++
	}

	var out []Violation
	for k, n := range counts {
		if n <= limit {
			continue
		}
		out = append(out, Violation{
			Kind:     KindWeeklyLoad,
			Message:  fmt.Sprintf("班级 %s 第%d周共排了 %d 节，超出每周上限 %d 节", k.classID, k.week, n, limit),
			ClassID:  k.classID,
			ClassIDs: []string{k.classID},
			Week:     k.week,
			Count:    n,
			Limit:    limit,
		})
	}
	return out
}

// ════════════════════════════════════════════════════════════
// 连续节次
// ════════════════════════════════════════════════════════════

// ConsecutiveRuns 极大连续段长度超过上限时产生一条违规，Periods 为整段节次
func ConsecutiveRuns(in *Input) []Violation {
	limit := in.Constraints.MaxConsecutiveClasses

	var out []Violation
	for k, periods := range dayPeriods(in.Assignments) {
		for _, run := range runs(periods) {
			if len(run) <= limit {
				continue
			}
			out = append(out, Violation{
				Kind: KindConsecutiveRun,
				Message: fmt.Sprintf("班级 %s 第%d周%s第%d-%d节连续 %d 节，超出上限 %d 节",
					k.classID, k.week, k.weekday.Label(), run[0], run[len(run)-1], len(run), limit),
				ClassID:  k.classID,
				ClassIDs: []string{k.classID},
				Weekday:  k.weekday,
				Period:   run[0],
				Week:     k.week,
				Periods:  span(run),
				Count:    len(run),
				Limit:    limit,
			})
		}
	}
	return out
}

// BreakRequired 连续计数恰好达到上限、且下一节仍被同一班级占用时，在下一节产生违规。
// 只向后看一节，不回看。
func BreakRequired(in *Input) []Violation {
	if !in.Constraints.RequireBreakAfterClass {
		return nil
	}
	limit := in.Constraints.MaxConsecutiveClasses

	var out []Violation
	for k, periods := range dayPeriods(in.Assignments) {
		occupied := make(map[int]bool, len(periods))
		for _, p := range periods {
			occupied[p] = true
		}

		count := 0
		for i, p := range periods {
			if i > 0 && p == periods[i-1]+1 {
				count++
			} else {
				count = 1
			}
			if count != limit || !occupied[p+1] {
				continue
			}
			out = append(out, Violation{
				Kind: KindBreakRequired,
				Message: fmt.Sprintf("班级 %s 第%d周%s连续上满 %d 节后第%d节未安排休息",
					k.classID, k.week, k.weekday.Label(), limit, p+1),
				ClassID:  k.classID,
				ClassIDs: []string{k.classID},
				Weekday:  k.weekday,
				Period:   p + 1,
				Week:     k.week,
				Periods:  span(periods[i-limit+1 : i+1]),
				Limit:    limit,
			})
		}
	}
	return out
}
