package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"thunder-scheduler/backend/internal/calendar"
)

// ── CSV 编解码 ──────────────────────────────────────────────
//
// 导入格式（班级不可排时段）：
//   Class,Monday,Tuesday,Wednesday,Thursday,Friday
//   Class 1A,1;2;3,6;7,,2;3,
//
// 导出格式（排课方案）：
//   Week,Period 1,...,Period N
//   Week 1,,,...
//   MONDAY,<班级>,...
//   ...
//   （每周之后一行空行）
// ─────────────────────────────────────────────────────────────

// CSVErrorType CSV 错误大类
type CSVErrorType string

const (
	CSVFormatError  CSVErrorType = "FORMAT_ERROR"
	CSVContentError CSVErrorType = "CONTENT_ERROR"
)

// CSVErrorCode CSV 错误码
type CSVErrorCode string

const (
	CSVMissingHeaders   CSVErrorCode = "MISSING_HEADERS"
	CSVMalformed        CSVErrorCode = "MALFORMED_CSV"
	CSVInvalidPeriod    CSVErrorCode = "INVALID_PERIOD"
	CSVEmptyClass       CSVErrorCode = "EMPTY_CLASS"
	CSVDuplicateClass   CSVErrorCode = "DUPLICATE_CLASS"
	CSVPeriodOutOfRange CSVErrorCode = "PERIOD_OUT_OF_RANGE"
)

// CSVError 单条 CSV 校验错误。Line 从表头之后的第一行数据开始计为 1。
type CSVError struct {
	Type    CSVErrorType `json:"type"`
	Code    CSVErrorCode `json:"code"`
	Message string       `json:"message"`
	Line    int          `json:"line,omitempty"`
	Column  string       `json:"column,omitempty"`
	Value   string       `json:"value,omitempty"`
}

// ImportError 导入失败，携带全部 CSV 错误
type ImportError struct {
	Errors []CSVError
}

func (e *ImportError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ce := range e.Errors {
		msgs = append(msgs, ce.Message)
	}
	return fmt.Sprintf("%s: %s", ErrImportInvalid.Error(), strings.Join(msgs, "; "))
}

func (e *ImportError) Unwrap() error { return ErrImportInvalid }

// ParsedClass 一行 CSV 解析出的班级及其不可排时段
type ParsedClass struct {
	Name      string
	Conflicts map[calendar.Weekday][]int
}

// DefaultCSVMaxPeriods 导入时节次上限的默认值
const DefaultCSVMaxPeriods = 10

var (
	csvHeaders      = []string{"Class", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	periodFormat    = regexp.MustCompile(`^(\d+)(;\d+)*$`)
	classNameFormat = regexp.MustCompile(`^[A-Za-z0-9\s-]+$`)
)

// ParseConflictsCSV 解析班级不可排时段 CSV。存在任何错误时返回 *ImportError，且不返回部分结果。
func ParseConflictsCSV(r io.Reader, maxPeriods int) ([]ParsedClass, error) {
	if maxPeriods <= 0 {
		maxPeriods = DefaultCSVMaxPeriods
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, &ImportError{Errors: []CSVError{{
			Type: CSVFormatError, Code: CSVMalformed, Message: "CSV 内容为空",
		}}}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &ImportError{Errors: []CSVError{{
			Type: CSVFormatError, Code: CSVMalformed, Message: fmt.Sprintf("CSV 表头解析失败: %v", err),
		}}}
	}
	if errs := checkHeader(header); len(errs) > 0 {
		return nil, &ImportError{Errors: errs}
	}

	var (
		result []ParsedClass
		errs   []CSVError
		seen   = make(map[string]int)
	)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, CSVError{
				Type: CSVFormatError, Code: CSVMalformed, Line: line,
				Message: fmt.Sprintf("第 %d 行格式错误: %v", line, err),
			})
			continue
		}
		if isBlankRecord(record) {
			continue
		}
		if len(record) != len(csvHeaders) {
			errs = append(errs, CSVError{
				Type: CSVFormatError, Code: CSVMalformed, Line: line,
				Message: fmt.Sprintf("第 %d 行应有 %d 列，实际 %d 列", line, len(csvHeaders), len(record)),
			})
			continue
		}

		name := strings.TrimSpace(record[0])
		if name == "" || !classNameFormat.MatchString(name) {
			errs = append(errs, CSVError{
				Type: CSVContentError, Code: CSVEmptyClass, Line: line, Column: "Class", Value: record[0],
				Message: fmt.Sprintf("第 %d 行班级名称无效: %q", line, record[0]),
			})
			continue
		}
		if first, dup := seen[name]; dup {
			errs = append(errs, CSVError{
				Type: CSVContentError, Code: CSVDuplicateClass, Line: line, Column: "Class", Value: name,
				Message: fmt.Sprintf("第 %d 行班级 %q 与第 %d 行重复", line, name, first),
			})
			continue
		}
		seen[name] = line

		pc := ParsedClass{Name: name, Conflicts: make(map[calendar.Weekday][]int, len(calendar.Weekdays))}
		for i, day := range calendar.Weekdays {
			column := csvHeaders[i+1]
			periods, cellErr := parsePeriodCell(strings.TrimSpace(record[i+1]), maxPeriods)
			if cellErr != nil {
				cellErr.Line = line
				cellErr.Column = column
				cellErr.Value = record[i+1]
				cellErr.Message = fmt.Sprintf("第 %d 行 %s: %s", line, column, cellErr.Message)
				errs = append(errs, *cellErr)
				continue
			}
			pc.Conflicts[day] = periods
		}
		result = append(result, pc)
	}

	if len(errs) > 0 {
		return nil, &ImportError{Errors: errs}
	}
	return result, nil
}

func checkHeader(header []string) []CSVError {
	if len(header) != len(csvHeaders) {
		return []CSVError{{
			Type: CSVFormatError, Code: CSVMissingHeaders,
			Message: fmt.Sprintf("表头应有 %d 列，实际 %d 列", len(csvHeaders), len(header)),
		}}
	}
	var errs []CSVError
	for i, want := range csvHeaders {
		got := strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
		if got != want {
			errs = append(errs, CSVError{
				Type: CSVFormatError, Code: CSVMissingHeaders, Column: want, Value: got,
				Message: fmt.Sprintf("第 %d 列表头应为 %q，实际为 %q", i+1, want, got),
			})
		}
	}
	return errs
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// parsePeriodCell 解析 "1;2;3"；空单元格表示无冲突
func parsePeriodCell(cell string, maxPeriods int) ([]int, *CSVError) {
	if cell == "" {
		return []int{}, nil
	}
	if !periodFormat.MatchString(cell) {
		return nil, &CSVError{Type: CSVContentError, Code: CSVInvalidPeriod, Message: "节次格式无效，应为以分号分隔的数字"}
	}
	var (
		periods []int
		invalid []string
	)
	for _, part := range strings.Split(cell, ";") {
		p, _ := strconv.Atoi(part)
		if p < 1 || p > maxPeriods {
			invalid = append(invalid, part)
			continue
		}
		periods = append(periods, p)
	}
	if len(invalid) > 0 {
		return nil, &CSVError{
			Type: CSVContentError, Code: CSVPeriodOutOfRange,
			Message: fmt.Sprintf("节次 %s 超出范围 1-%d", strings.Join(invalid, ", "), maxPeriods),
		}
	}
	return calendar.NormalizePeriods(periods), nil
}

// RenderScheduleCSV 按周渲染排课方案。classNames 缺失的班级以 ID 显示；
// 同一时间格有多个班级时以 " / " 连接。
func RenderScheduleCSV(schedule calendar.Schedule, periodsPerDay int, classNames map[string]string) ([]byte, error) {
	if periodsPerDay <= 0 {
		periodsPerDay = calendar.DefaultPeriodsPerDay
	}

	byWeek := make(map[int]map[calendar.Slot][]string)
	for _, a := range schedule.Assignments {
		if byWeek[a.Week] == nil {
			byWeek[a.Week] = make(map[calendar.Slot][]string)
		}
		label := a.ClassID
		if name, ok := classNames[a.ClassID]; ok && name != "" {
			label = name
		}
		byWeek[a.Week][a.Slot()] = append(byWeek[a.Week][a.Slot()], label)
	}
	weeks := make([]int, 0, len(byWeek))
	for w := range byWeek {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, periodsPerDay+1)
	header = append(header, "Week")
	for p := 1; p <= periodsPerDay; p++ {
		header = append(header, fmt.Sprintf("Period %d", p))
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	blank := make([]string, periodsPerDay+1)
	for _, week := range weeks {
		weekRow := make([]string, periodsPerDay+1)
		weekRow[0] = fmt.Sprintf("Week %d", week)
		if err := w.Write(weekRow); err != nil {
			return nil, err
		}
		for _, day := range calendar.Weekdays {
			row := make([]string, 0, periodsPerDay+1)
			row = append(row, day.String())
			for p := 1; p <= periodsPerDay; p++ {
				names := byWeek[week][calendar.Slot{Weekday: day, Period: p, Week: week}]
				sort.Strings(names)
				row = append(row, strings.Join(names, " / "))
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
		if err := w.Write(blank); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
