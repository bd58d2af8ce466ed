package calendar

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidWeekday 非教学日（仅支持周一至周五）
var ErrInvalidWeekday = errors.New("无效的星期，仅支持 MONDAY 至 FRIDAY")

// Weekday 教学日，序号 1..5 对应周一至周五。
// 文本形式为大写英文名（MONDAY），数据库中以 varchar 存储。
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
)

// Weekdays 按序号排列的全部教学日
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayNames = [...]string{"", "MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"}

// Valid 是否为合法教学日
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Friday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

var weekdayLabels = [...]string{"", "周一", "周二", "周三", "周四", "周五"}

// Label 中文名称，用于提示文案
func (d Weekday) Label() string {
	if !d.Valid() {
		return d.String()
	}
	return weekdayLabels[d]
}

// Offset 相对周一的天数
func (d Weekday) Offset() int {
	return int(d) - 1
}

// ParseWeekday 解析星期名称，大小写不敏感，接受全称与三字母缩写
func ParseWeekday(s string) (Weekday, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, d := range Weekdays {
		name := weekdayNames[d]
		if v == name || v == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// FromTime 将 time.Weekday 映射为教学日，周末返回 false
func FromTime(w time.Weekday) (Weekday, bool) {
	if w == time.Saturday || w == time.Sunday {
		return 0, false
	}
	return Weekday(w), true
}

// ── 文本 / JSON ──

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, int(d))
	}
	return []byte(weekdayNames[d]), nil
}

func (d *Weekday) UnmarshalText(text []byte) error {
	v, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ── GORM Scanner / Valuer ──

func (d *Weekday) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return d.UnmarshalText(v)
	case string:
		return d.UnmarshalText([]byte(v))
	case nil:
		*d = 0
		return nil
	default:
		return fmt.Errorf("Weekday.Scan: unsupported type %T", src)
	}
}

func (d Weekday) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, int(d))
	}
	return weekdayNames[d], nil
}
