// Package planner 将拖拽手势归约为与界面库无关的调课请求 {from_slot, to_slot}。
package planner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"thunder-scheduler/backend/internal/calendar"
)

var (
	ErrNoDestination   = errors.New("拖拽未落在任何时间格上")
	ErrNoMovement      = errors.New("起止时间格相同")
	ErrInvalidDropID   = errors.New("无效的时间格标识")
	ErrInvalidPosition = errors.New("时间格超出排课网格")
	ErrMissingClass    = errors.New("缺少班级 ID")
)

// Position 一周内的位置（星期, 节次），周次由 Move.Week 单独给出
type Position struct {
	Weekday calendar.Weekday `json:"weekday"`
	Period  int              `json:"period"`
}

// DropID 界面使用的时间格标识，形如 MONDAY-3
func (p Position) DropID() string {
	return fmt.Sprintf("%s-%d", p.Weekday, p.Period)
}

func (p Position) String() string { return p.DropID() }

// ParseDropID 解析 MONDAY-3 形式的时间格标识
func ParseDropID(id string) (Position, error) {
	day, period, ok := strings.Cut(strings.TrimSpace(id), "-")
	if !ok {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidDropID, id)
	}
	weekday, err := calendar.ParseWeekday(day)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidDropID, id)
	}
	n, err := strconv.Atoi(period)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidDropID, id)
	}
	return Position{Weekday: weekday, Period: n}, nil
}

// Move 单个班级从一个时间格移到另一个时间格（同一轮换周内）
type Move struct {
	ClassID string   `json:"class_id"`
	From    Position `json:"from_slot"`
	To      Position `json:"to_slot"`
	Week    int      `json:"week"`
}

// Source 移动前的排课记录
func (m Move) Source() calendar.Assignment {
	return calendar.Assignment{ClassID: m.ClassID, Weekday: m.From.Weekday, Period: m.From.Period, Week: m.Week}
}

// Target 移动后的排课记录
func (m Move) Target() calendar.Assignment {
	return calendar.Assignment{ClassID: m.ClassID, Weekday: m.To.Weekday, Period: m.To.Period, Week: m.Week}
}

func (m Move) String() string {
	return fmt.Sprintf("%s: %s → %s (W%d)", m.ClassID, m.From, m.To, m.Week)
}

// DropEvent 拖拽结束事件，Source/Destination 为时间格标识，Destination 为空表示未落在网格中
type DropEvent struct {
	ClassID     string
	Source      string
	Destination string
	Week        int
}

// Planner 按排课网格尺寸校验并生成调课请求
type Planner struct {
	periodsPerDay int
	rotationWeeks int
}

// New 创建 Planner
func New(periodsPerDay, rotationWeeks int) *Planner {
	if periodsPerDay <= 0 {
		periodsPerDay = calendar.DefaultPeriodsPerDay
	}
	if rotationWeeks <= 0 {
		rotationWeeks = 1
	}
	return &Planner{periodsPerDay: periodsPerDay, rotationWeeks: rotationWeeks}
}

// FromDrop 将拖拽事件转换为调课请求
func (p *Planner) FromDrop(evt DropEvent) (*Move, error) {
	if strings.TrimSpace(evt.Destination) == "" {
		return nil, ErrNoDestination
	}
	from, err := ParseDropID(evt.Source)
	if err != nil {
		return nil, err
	}
	to, err := ParseDropID(evt.Destination)
	if err != nil {
		return nil, err
	}
	return p.Plan(evt.ClassID, from, to, evt.Week)
}

// Plan 校验起止位置并生成调课请求
func (p *Planner) Plan(classID string, from, to Position, week int) (*Move, error) {
	if strings.TrimSpace(classID) == "" {
		return nil, ErrMissingClass
	}
	m := Move{ClassID: classID, From: from, To: to, Week: week}
	if err := m.Source().Validate(p.periodsPerDay, p.rotationWeeks); err != nil {
		return nil, fmt.Errorf("%w: 起点 %v", ErrInvalidPosition, err)
	}
	if err := m.Target().Validate(p.periodsPerDay, p.rotationWeeks); err != nil {
		return nil, fmt.Errorf("%w: 终点 %v", ErrInvalidPosition, err)
	}
	if from == to {
		return nil, ErrNoMovement
	}
	return &m, nil
}
