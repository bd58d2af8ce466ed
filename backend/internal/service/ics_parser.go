package service

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"thunder-scheduler/backend/config"
	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/model"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将教师日历 (RFC 5545) 中的事件换算为按日期的停课节次。
//
// 规则：
//   - DTSTART/DTEND 与作息表 (schedule.bells) 求交，得到被占用的节次
//   - 全天事件，或未配置作息表时，封锁当天全部节次
//   - RRULE 仅展开 FREQ=WEEKLY / FREQ=DAILY，EXDATE 排除的日期跳过
//   - 周末与区间外的日期忽略
//   - 同一日期的多条事件合并为一条记录，原因以 "; " 连接
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize  = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout = 30 * time.Second
	icsMaxRepeats   = 400
)

// bell 一节课的起止时间（当天分钟数）
type bell struct {
	start, end int
}

// ICSParser 将 ICS 内容换算为停课记录
type ICSParser struct {
	bells         []bell
	periodsPerDay int
	loc           *time.Location
}

// NewICSParser 由排课配置创建解析器
func NewICSParser(cfg *config.ScheduleConfig) (*ICSParser, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区失败: %w", err)
	}
	p := &ICSParser{periodsPerDay: cfg.PeriodsPerDay, loc: loc}
	if p.periodsPerDay <= 0 {
		p.periodsPerDay = calendar.DefaultPeriodsPerDay
	}
	for i, b := range cfg.Bells {
		start, err := parseClock(b.Start)
		if err != nil {
			return nil, fmt.Errorf("第 %d 节开始时间无效: %w", i+1, err)
		}
		end, err := parseClock(b.End)
		if err != nil {
			return nil, fmt.Errorf("第 %d 节结束时间无效: %w", i+1, err)
		}
		if end <= start {
			return nil, fmt.Errorf("第 %d 节结束时间须晚于开始时间", i+1)
		}
		p.bells = append(p.bells, bell{start: start, end: end})
	}
	return p, nil
}

// FetchICSContent 从 URL 获取 ICS 内容
func FetchICSContent(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// occurrence 一次事件发生
type occurrence struct {
	summary string
	start   time.Time
	end     time.Time
	allDay  bool
}

// Parse 解析 ICS 并返回 [from, to] 内的停课记录（按日期升序）与被忽略的事件数。
// from/to 为零值时不限制对应边界。
func (p *ICSParser) Parse(reader io.Reader, from, to time.Time) ([]model.TeacherAvailability, int, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrICSParseFailed, err)
	}

	type dayAgg struct {
		date    time.Time
		periods map[int]bool
		reasons []string
	}
	days := make(map[string]*dayAgg)
	skipped := 0

	for _, evt := range cal.Events() {
		occs, ok := p.expand(evt, from, to)
		if !ok {
			skipped++
			continue
		}
		used := false
		for _, o := range occs {
			if _, weekday := calendar.FromTime(o.start.Weekday()); !weekday {
				continue
			}
			periods := p.periodsFor(o)
			if len(periods) == 0 {
				continue
			}
			key := calendar.DateKey(o.start)
			agg, exists := days[key]
			if !exists {
				d, _ := calendar.ParseDate(key)
				agg = &dayAgg{date: d, periods: make(map[int]bool)}
				days[key] = agg
			}
			for _, pd := range periods {
				agg.periods[pd] = true
			}
			if o.summary != "" && !containsString(agg.reasons, o.summary) {
				agg.reasons = append(agg.reasons, o.summary)
			}
			used = true
		}
		if !used {
			skipped++
		}
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]model.TeacherAvailability, 0, len(keys))
	for _, k := range keys {
		agg := days[k]
		periods := make(model.IntArray, 0, len(agg.periods))
		for pd := range agg.periods {
			periods = append(periods, pd)
		}
		result = append(result, model.TeacherAvailability{
			Date:           agg.date,
			BlockedPeriods: periods.Normalize(),
			Reason:         truncate(strings.Join(agg.reasons, "; "), 200),
			Source:         "ics",
		})
	}
	return result, skipped, nil
}

// expand 展开单个 VEVENT 在区间内的全部发生
func (p *ICSParser) expand(evt *ics.VEvent, from, to time.Time) ([]occurrence, bool) {
	summary := ""
	if prop := evt.GetProperty(ics.ComponentPropertySummary); prop != nil {
		summary = strings.TrimSpace(prop.Value)
	}

	start, allDay, err := p.parseDateTime(evt, ics.ComponentPropertyDtStart)
	if err != nil {
		return nil, false
	}
	end, _, err := p.parseDateTime(evt, ics.ComponentPropertyDtEnd)
	if err != nil || !end.After(start) {
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.Add(time.Hour)
		}
	}
	duration := end.Sub(start)

	inRange := func(t time.Time) bool {
		d := calendar.DateKey(t)
		if !from.IsZero() && d < calendar.DateKey(from) {
			return false
		}
		if !to.IsZero() && d > calendar.DateKey(to) {
			return false
		}
		return true
	}

	var starts []time.Time
	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		starts = []time.Time{start}
	} else {
		rule := parseRRule(rruleProp.Value)
		step := 0
		switch rule.freq {
		case "DAILY":
			step = 1
		case "WEEKLY":
			step = 7
		default:
			starts = []time.Time{start}
		}
		if step > 0 {
			exDates := parseExDates(evt, p.loc)
			interval := rule.interval
			if interval < 1 {
				interval = 1
			}
			current := start
			for n := 0; n < icsMaxRepeats; n++ {
				if rule.count > 0 && n >= rule.count {
					break
				}
				if !rule.until.IsZero() && current.After(rule.until) {
					break
				}
				if !to.IsZero() && calendar.DateKey(current) > calendar.DateKey(to) {
					break
				}
				if !exDates[current.Format("20060102")] {
					starts = append(starts, current)
				}
				current = current.AddDate(0, 0, step*interval)
			}
		}
	}

	var occs []occurrence
	for _, s := range starts {
		if !inRange(s) {
			continue
		}
		if allDay {
			// 多日全天事件按天拆分
			for d := s; d.Before(s.Add(duration)); d = d.AddDate(0, 0, 1) {
				if inRange(d) {
					occs = append(occs, occurrence{summary: summary, start: d, end: d.AddDate(0, 0, 1), allDay: true})
				}
			}
			continue
		}
		occs = append(occs, occurrence{summary: summary, start: s, end: s.Add(duration)})
	}
	return occs, true
}

// periodsFor 计算事件占用的节次
func (p *ICSParser) periodsFor(o occurrence) []int {
	if o.allDay || len(p.bells) == 0 {
		all := make([]int, p.periodsPerDay)
		for i := range all {
			all[i] = i + 1
		}
		return all
	}
	startMin := o.start.Hour()*60 + o.start.Minute()
	endMin := o.end.Hour()*60 + o.end.Minute()
	if calendar.DateKey(o.end) != calendar.DateKey(o.start) {
		endMin = 24 * 60
	}
	var periods []int
	for i, b := range p.bells {
		if startMin < b.end && endMin > b.start {
			periods = append(periods, i+1)
		}
	}
	return periods
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &r.interval)
		case "COUNT":
			fmt.Sscanf(kv[1], "%d", &r.count)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
				t = t.Add(24*time.Hour - time.Second)
			}
			r.until = t
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE，支持逗号分隔的多值
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			t, err := time.Parse("20060102T150405Z", v)
			if err == nil {
				t = t.In(loc)
			} else if t, err = time.ParseInLocation("20060102T150405", v, loc); err != nil {
				t, err = time.ParseInLocation("20060102", v, loc)
			}
			if err == nil {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseDateTime 解析日期时间属性，第二个返回值表示是否为全天日期
func (p *ICSParser) parseDateTime(evt *ics.VEvent, propName ics.ComponentProperty) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(p.loc), false, nil
	}

	loc := p.loc
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			if tzLoc, err := time.LoadLocation(v[0]); err == nil {
				loc = tzLoc
			}
		}
	}
	if t, err := time.ParseInLocation("20060102T150405", val, loc); err == nil {
		return t.In(p.loc), false, nil
	}
	if t, err := time.ParseInLocation("20060102", val, p.loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}

// ── 辅助函数 ──

// parseClock 解析 HH:MM 为当天分钟数
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
