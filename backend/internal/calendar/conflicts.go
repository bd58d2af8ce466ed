package calendar

import "sort"

// NormalizePeriods 去重并升序
func NormalizePeriods(periods []int) []int {
	if len(periods) == 0 {
		return []int{}
	}
	seen := make(map[int]bool, len(periods))
	out := make([]int, 0, len(periods))
	for _, p := range periods {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

type conflictKey struct {
	classID string
	weekday Weekday
}

// MergeConflicts 合并同一 (班级, 星期) 的多条记录，节次取并集。
// 输出按 班级 → 星期 排序。
func MergeConflicts(conflicts []ClassConflict) []ClassConflict {
	merged := make(map[conflictKey][]int)
	for _, c := range conflicts {
		k := conflictKey{classID: c.ClassID, weekday: c.Weekday}
		merged[k] = append(merged[k], c.Periods...)
	}

	out := make([]ClassConflict, 0, len(merged))
	for k, periods := range merged {
		out = append(out, ClassConflict{
			ClassID: k.classID,
			Weekday: k.weekday,
			Periods: NormalizePeriods(periods),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClassID != out[j].ClassID {
			return out[i].ClassID < out[j].ClassID
		}
		return out[i].Weekday < out[j].Weekday
	})
	return out
}

// ConflictIndex 班级 → 星期 → 节次 的查找表
type ConflictIndex map[string]map[Weekday]map[int]bool

// BuildConflictIndex 构建不可排时段索引，重复记录自动合并
func BuildConflictIndex(conflicts []ClassConflict) ConflictIndex {
	idx := make(ConflictIndex)
	for _, c := range conflicts {
		days, ok := idx[c.ClassID]
		if !ok {
			days = make(map[Weekday]map[int]bool)
			idx[c.ClassID] = days
		}
		periods, ok := days[c.Weekday]
		if !ok {
			periods = make(map[int]bool)
			days[c.Weekday] = periods
		}
		for _, p := range c.Periods {
			periods[p] = true
		}
	}
	return idx
}

// Blocked 班级在该星期该节次是否不可排
func (idx ConflictIndex) Blocked(classID string, weekday Weekday, period int) bool {
	return idx[classID][weekday][period]
}
