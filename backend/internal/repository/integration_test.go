//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/model"
	"thunder-scheduler/backend/internal/repository"
	"thunder-scheduler/backend/pkg/database"
	pkgerrors "thunder-scheduler/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=thunder password=thunder_password dbname=thunder_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

func createClass(t *testing.T, repo *repository.Repository, conflicts ...model.ClassConflict) *model.Class {
	t.Helper()
	class := &model.Class{
		Name:       fmt.Sprintf("Class %d", time.Now().UnixNano()),
		GradeLevel: 3,
		Conflicts:  conflicts,
	}
	if err := repo.Class.Create(context.Background(), class); err != nil {
		t.Fatalf("创建班级失败: %v", err)
	}
	t.Cleanup(func() {
		testDB.Where("class_id = ?", class.ClassID).Delete(&model.Class{})
	})
	return class
}

func createSchedule(t *testing.T, repo *repository.Repository, assignments ...model.Assignment) *model.Schedule {
	t.Helper()
	s := &model.Schedule{
		Name:          "integration",
		StartDate:     time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
		RotationWeeks: 2,
		PeriodsPerDay: 8,
		Assignments:   assignments,
	}
	s.SetConstraints(calendar.DefaultConstraints())
	if err := repo.Schedule.Create(context.Background(), s); err != nil {
		t.Fatalf("创建排课方案失败: %v", err)
	}
	t.Cleanup(func() {
		testDB.Where("schedule_id = ?", s.ScheduleID).Delete(&model.Schedule{})
	})
	return s
}

// ═══════════════════════════════════════════════════════════
// Test: Class & Conflicts
// ═══════════════════════════════════════════════════════════

func TestClass_CreateWithConflicts(t *testing.T) {
	repo := repository.NewRepository(testDB)
	class := createClass(t, repo, model.ClassConflict{Weekday: calendar.Monday, Periods: model.IntArray{1, 2}})

	found, err := repo.Class.GetByID(context.Background(), class.ClassID)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if len(found.Conflicts) != 1 {
		t.Fatalf("期望 1 条不可排时段，实际=%d", len(found.Conflicts))
	}
	if found.Conflicts[0].Weekday != calendar.Monday {
		t.Errorf("期望 MONDAY，实际=%s", found.Conflicts[0].Weekday)
	}
	if fmt.Sprint(found.Conflicts[0].Periods) != "[1 2]" {
		t.Errorf("期望节次 [1 2]，实际=%v", found.Conflicts[0].Periods)
	}
}

func TestClass_DuplicateWeekdayRejected(t *testing.T) {
	repo := repository.NewRepository(testDB)
	class := &model.Class{
		Name: fmt.Sprintf("Dup %d", time.Now().UnixNano()),
		Conflicts: []model.ClassConflict{
			{Weekday: calendar.Tuesday, Periods: model.IntArray{1}},
			{Weekday: calendar.Tuesday, Periods: model.IntArray{2}},
		},
	}
	err := repo.Class.Create(context.Background(), class)
	if err == nil {
		testDB.Where("class_id = ?", class.ClassID).Delete(&model.Class{})
		t.Fatal("同一星期两条不可排时段应违反唯一约束")
	}
}

func TestClass_UpsertByName(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	existing := createClass(t, repo, model.ClassConflict{Weekday: calendar.Friday, Periods: model.IntArray{8}})

	batch := []model.Class{{
		Name:       existing.Name,
		GradeLevel: 5,
		Conflicts:  []model.ClassConflict{{Weekday: calendar.Wednesday, Periods: model.IntArray{3, 4}}},
	}}
	if err := repo.Class.UpsertByName(ctx, batch); err != nil {
		t.Fatalf("UpsertByName 失败: %v", err)
	}
	if batch[0].ClassID != existing.ClassID {
		t.Errorf("期望复用已有班级 ID %s，实际=%s", existing.ClassID, batch[0].ClassID)
	}

	found, err := repo.Class.GetByID(ctx, existing.ClassID)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if found.GradeLevel != 5 {
		t.Errorf("期望 GradeLevel=5，实际=%d", found.GradeLevel)
	}
	if len(found.Conflicts) != 1 || found.Conflicts[0].Weekday != calendar.Wednesday {
		t.Errorf("不可排时段应被整体替换，实际=%+v", found.Conflicts)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Assignments
// ═══════════════════════════════════════════════════════════

func TestAssignment_ReplaceAll(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	c1, c2 := createClass(t, repo), createClass(t, repo)

	s := createSchedule(t, repo,
		model.Assignment{ClassID: c1.ClassID, Weekday: calendar.Monday, Period: 1, Week: 1},
	)

	// 冲突的排课也允许保存
	next := []model.Assignment{
		{ClassID: c1.ClassID, Weekday: calendar.Tuesday, Period: 2, Week: 1},
		{ClassID: c2.ClassID, Weekday: calendar.Tuesday, Period: 2, Week: 1},
	}
	if err := repo.Assignment.ReplaceAll(ctx, s.ScheduleID, next, nil, nil); err != nil {
		t.Fatalf("ReplaceAll 失败: %v", err)
	}

	rows, err := repo.Assignment.ListBySchedule(ctx, s.ScheduleID)
	if err != nil {
		t.Fatalf("ListBySchedule 失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("期望 2 条排课记录，实际=%d", len(rows))
	}
	for _, r := range rows {
		if r.Weekday != calendar.Tuesday || r.Period != 2 {
			t.Errorf("排课记录未被替换: %+v", r)
		}
	}

	found, err := repo.Schedule.GetByID(ctx, s.ScheduleID)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if found.Version != s.Version+1 {
		t.Errorf("期望版本递增到 %d，实际=%d", s.Version+1, found.Version)
	}
}

func TestAssignment_ReplaceAllMissingSchedule(t *testing.T) {
	repo := repository.NewRepository(testDB)
	err := repo.Assignment.ReplaceAll(context.Background(), "00000000-0000-0000-0000-000000000000", nil, nil, nil)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际: %v", err)
	}
}

func TestSchedule_DeleteCascades(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	c1 := createClass(t, repo)
	s := createSchedule(t, repo, model.Assignment{ClassID: c1.ClassID, Weekday: calendar.Friday, Period: 3, Week: 2})

	if err := repo.Schedule.Delete(ctx, s.ScheduleID); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	rows, err := repo.Assignment.ListBySchedule(ctx, s.ScheduleID)
	if err != nil {
		t.Fatalf("ListBySchedule 失败: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("删除方案后排课记录应级联删除，实际剩余 %d 条", len(rows))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Optimistic Lock
// ═══════════════════════════════════════════════════════════

func TestOptimisticLock_ReplaceAll_ConflictDetected(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	c1 := createClass(t, repo)
	s := createSchedule(t, repo)

	// 两个写入者都基于同一版本
	version := s.Version
	first := []model.Assignment{{ClassID: c1.ClassID, Weekday: calendar.Monday, Period: 1, Week: 1}}
	if err := repo.Assignment.ReplaceAll(ctx, s.ScheduleID, first, &version, nil); err != nil {
		t.Fatalf("第一次替换失败: %v", err)
	}

	second := []model.Assignment{{ClassID: c1.ClassID, Weekday: calendar.Friday, Period: 2, Week: 1}}
	if err := repo.Assignment.ReplaceAll(ctx, s.ScheduleID, second, &version, nil); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}

	rows, err := repo.Assignment.ListBySchedule(ctx, s.ScheduleID)
	if err != nil {
		t.Fatalf("ListBySchedule 失败: %v", err)
	}
	if len(rows) != 1 || rows[0].Weekday != calendar.Monday {
		t.Errorf("版本冲突时不应写入，实际=%+v", rows)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Calendar
// ═══════════════════════════════════════════════════════════

func TestCalendar_LoadByDateRange(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	createClass(t, repo)

	in := &model.TeacherAvailability{Date: time.Date(2031, 3, 4, 0, 0, 0, 0, time.UTC), BlockedPeriods: model.IntArray{1}}
	out := &model.TeacherAvailability{Date: time.Date(2031, 5, 6, 0, 0, 0, 0, time.UTC), BlockedPeriods: model.IntArray{2}}
	for _, r := range []*model.TeacherAvailability{in, out} {
		if err := repo.TeacherAvailability.Create(ctx, r); err != nil {
			t.Fatalf("创建停课记录失败: %v", err)
		}
		id := r.AvailabilityID
		t.Cleanup(func() { testDB.Where("availability_id = ?", id).Delete(&model.TeacherAvailability{}) })
	}

	cal, err := repo.Calendar.LoadCalendar(ctx, time.Date(2031, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2031, 3, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("LoadCalendar 失败: %v", err)
	}
	if len(cal.Classes) == 0 {
		t.Error("期望至少包含一个班级")
	}
	if len(cal.TeacherAvailability) != 1 || cal.TeacherAvailability[0].AvailabilityID != in.AvailabilityID {
		t.Errorf("期望只返回区间内的停课记录，实际=%+v", cal.TeacherAvailability)
	}
}
