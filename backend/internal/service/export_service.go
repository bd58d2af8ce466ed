package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"thunder-scheduler/backend/config"
	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/model"
	"thunder-scheduler/backend/internal/repository"
	"thunder-scheduler/backend/pkg/logger"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSchedule   = errors.New("排课方案不存在")
	ErrUnsupportedFormat  = errors.New("不支持的导出格式，仅支持 csv 与 xlsx")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// 导出格式
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入。
type ExportService interface {
	// ExportSchedule 按格式导出排课方案，返回内容与建议文件名
	ExportSchedule(ctx context.Context, scheduleID, format string) (*bytes.Buffer, string, error)
}

type exportService struct {
	bells  []config.BellConfig
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{bells: cfg.Schedule.Bells, repo: repo, logger: logger}
}

func (s *exportService) ExportSchedule(ctx context.Context, scheduleID, format string) (*bytes.Buffer, string, error) {
	log := logger.FromContext(ctx, s.logger)

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, "", ErrUnsupportedFormat
	}

	schedule, err := s.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrExportNoSchedule
		}
		log.Error("查询排课方案失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, "", err
	}

	classNames, err := s.classNames(ctx)
	if err != nil {
		log.Error("查询班级名称失败", zap.Error(err))
		return nil, "", err
	}

	cal := schedule.ToCalendar(nil)
	base := exportBaseName(schedule)

	switch format {
	case FormatXLSX:
		buf, err := s.renderXLSX(schedule, cal, classNames)
		if err != nil {
			log.Error("写入 Excel 失败", zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}
		return buf, base + ".xlsx", nil
	default:
		data, err := RenderScheduleCSV(cal, schedule.PeriodsPerDay, classNames)
		if err != nil {
			log.Error("写入 CSV 失败", zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}
		return bytes.NewBuffer(data), base + ".csv", nil
	}
}

func (s *exportService) classNames(ctx context.Context) (map[string]string, error) {
	classes, err := s.repo.Class.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(classes))
	for _, c := range classes {
		names[c.ClassID] = c.Name
	}
	return names, nil
}

// ═══════════════════════════════════════════════════════════
// renderXLSX 按周分 Sheet
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "第1周" / "第2周"（按 week 分）
//   - 行头：周一 ~ 周五
//   - 列头：第1节 ~ 第N节，配置了作息表时附带起止时间
//   - 单元格：班级名称，多个班级以 " / " 连接

func (s *exportService) renderXLSX(schedule *model.Schedule, cal calendar.Schedule, classNames map[string]string) (*bytes.Buffer, error) {
	periodsPerDay := schedule.PeriodsPerDay
	if periodsPerDay <= 0 {
		periodsPerDay = calendar.DefaultPeriodsPerDay
	}

	cells := make(map[calendar.Slot][]string)
	weekSet := make(map[int]bool)
	for _, a := range cal.Assignments {
		label := a.ClassID
		if name, ok := classNames[a.ClassID]; ok && name != "" {
			label = name
		}
		cells[a.Slot()] = append(cells[a.Slot()], label)
		weekSet[a.Week] = true
	}
	// 空方案也输出完整的轮换周期
	for w := 1; w <= schedule.RotationWeeks; w++ {
		weekSet[w] = true
	}
	weeks := make([]int, 0, len(weekSet))
	for w := range weekSet {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)
	if len(weeks) == 0 {
		weeks = []int{1}
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, err
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, err
	}

	lastCol := colName(periodsPerDay)
	for i, week := range weeks {
		sheet := fmt.Sprintf("第%d周", week)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}

		f.SetColWidth(sheet, "A", "A", 10)
		f.SetColWidth(sheet, "B", lastCol, 18)

		// 标题行
		f.SetCellValue(sheet, "A1", fmt.Sprintf("%s（第%d周）", schedule.Name, week))
		f.MergeCell(sheet, "A1", cell(lastCol, 1))
		f.SetCellStyle(sheet, "A1", cell(lastCol, 1), headerStyle)

		// 表头
		f.SetCellValue(sheet, cell("A", 2), "星期")
		for p := 1; p <= periodsPerDay; p++ {
			f.SetCellValue(sheet, cell(colName(p), 2), s.periodLabel(p))
		}
		f.SetCellStyle(sheet, cell("A", 2), cell(lastCol, 2), headerStyle)

		// 数据行
		row := 3
		for _, day := range calendar.Weekdays {
			f.SetCellValue(sheet, cell("A", row), day.Label())
			for p := 1; p <= periodsPerDay; p++ {
				names := cells[calendar.Slot{Weekday: day, Period: p, Week: week}]
				sort.Strings(names)
				f.SetCellValue(sheet, cell(colName(p), row), strings.Join(names, " / "))
			}
			row++
		}
		f.SetCellStyle(sheet, cell("B", 3), cell(lastCol, row-1), cellStyle)
	}
	f.SetActiveSheet(0)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *exportService) periodLabel(p int) string {
	if p-1 < len(s.bells) {
		b := s.bells[p-1]
		return fmt.Sprintf("第%d节\n%s-%s", p, b.Start, b.End)
	}
	return fmt.Sprintf("第%d节", p)
}

// ── 辅助函数 ──

// exportBaseName 建议文件名（不含扩展名）
func exportBaseName(s *model.Schedule) string {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = "schedule"
	}
	name = strings.NewReplacer("/", "_", "\\", "_", " ", "_", "\"", "").Replace(name)
	return fmt.Sprintf("%s_%s", name, calendar.DateKey(s.StartDate))
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
