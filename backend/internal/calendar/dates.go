package calendar

import (
	"sort"
	"strings"
	"time"
)

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// civil 截取日期部分，统一到 UTC 零点，避免时区造成跨日
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey 日期的 YYYY-MM-DD 表示
func DateKey(t time.Time) string {
	return civil(t).Format(DateLayout)
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// RotationAnchor 第 1 轮换周的周一。
// 起始日落在周末时顺延到下一个周一，否则回退到当周周一。
func RotationAnchor(start time.Time) time.Time {
	d := civil(start)
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, 2)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	default:
		return d.AddDate(0, 0, -int(d.Weekday()-time.Monday))
	}
}

// SlotDates 返回 (星期, 轮换周) 在排课区间内对应的全部日期：
// 首次出现为 anchor + (星期-1) 天 + (周次-1)*7 天，之后每隔 rotationWeeks 周重复，直到超过 end。
// end 为零值时只返回首次出现。
func SlotDates(start, end time.Time, rotationWeeks int, weekday Weekday, week int) []time.Time {
	if !weekday.Valid() || week < 1 {
		return nil
	}
	if rotationWeeks < 1 {
		rotationWeeks = 1
	}
	first := RotationAnchor(start).AddDate(0, 0, weekday.Offset()+(week-1)*7)
	dates := []time.Time{first}
	if end.IsZero() {
		return dates
	}
	last := civil(end)
	for k := 1; ; k++ {
		d := first.AddDate(0, 0, k*rotationWeeks*7)
		if d.After(last) {
			break
		}
		dates = append(dates, d)
	}
	return dates
}

// ResolveDate 将具体日期反推为 (星期, 轮换周)。周末或早于起始周返回 false。
func ResolveDate(start time.Time, rotationWeeks int, date time.Time) (Weekday, int, bool) {
	weekday, ok := FromTime(date.Weekday())
	if !ok {
		return 0, 0, false
	}
	if rotationWeeks < 1 {
		rotationWeeks = 1
	}
	days := int(civil(date).Sub(RotationAnchor(start)).Hours() / 24)
	if days < 0 {
		return 0, 0, false
	}
	return weekday, (days/7)%rotationWeeks + 1, true
}

// ── 停课索引 ──

type blackout struct {
	periods map[int]bool
	reasons []string
}

// BlackoutIndex 日期 → 停课节次，同一日期的多条记录合并
type BlackoutIndex map[string]*blackout

// BuildBlackoutIndex 构建教师停课索引
func BuildBlackoutIndex(records []TeacherAvailability) BlackoutIndex {
	idx := make(BlackoutIndex)
	for _, r := range records {
		key := DateKey(r.Date)
		b, ok := idx[key]
		if !ok {
			b = &blackout{periods: make(map[int]bool)}
			idx[key] = b
		}
		for _, p := range r.BlockedPeriods {
			b.periods[p] = true
		}
		if r.Reason != "" {
			b.reasons = append(b.reasons, r.Reason)
		}
	}
	for _, b := range idx {
		sort.Strings(b.reasons)
	}
	return idx
}

// Blocked 该日期该节次是否停课，并返回停课原因（可能为空）
func (idx BlackoutIndex) Blocked(date time.Time, period int) (bool, string) {
	b, ok := idx[DateKey(date)]
	if !ok || !b.periods[period] {
		return false, ""
	}
	return true, strings.Join(b.reasons, "; ")
}
