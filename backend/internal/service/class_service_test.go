package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/dto"
)

// ── 测试辅助 ──

func setupTestClassService() (ClassService, *testRepos, *fakeCache) {
	repos := newTestRepos()
	cache := newFakeCache()
	svc := NewClassService(testConfig(), repos.toRepository(), newTestLoader(repos, cache), zap.NewNop())
	return svc, repos, cache
}

// ── Create 测试 ──

func TestClassService_Create_MergesConflicts(t *testing.T) {
	svc, repos, cache := setupTestClassService()

	resp, err := svc.Create(context.Background(), &dto.CreateClassRequest{
		Name:       "  Class 1A ",
		GradeLevel: 1,
		Conflicts: []dto.ConflictEntry{
			{Weekday: calendar.Tuesday, Periods: []int{3}},
			{Weekday: calendar.Monday, Periods: []int{2, 1}},
			{Weekday: calendar.Monday, Periods: []int{2, 4}},
		},
	}, "scheduler")
	if err != nil {
		t.Fatalf("期望创建成功，实际: %v", err)
	}
	if resp.Name != "Class 1A" {
		t.Errorf("名称应去除首尾空白，实际 %q", resp.Name)
	}
	if len(resp.Conflicts) != 2 {
		t.Fatalf("同一星期应合并为一条，实际 %d 条", len(resp.Conflicts))
	}
	if resp.Conflicts[0].Weekday != calendar.Monday {
		t.Errorf("冲突应按星期排序，实际首条为 %s", resp.Conflicts[0].Weekday)
	}
	if got := resp.Conflicts[0].Periods; len(got) != 3 || got[0] != 1 || got[2] != 4 {
		t.Errorf("周一节次应为 [1 2 4]，实际 %v", got)
	}
	if _, ok := repos.class.classes[resp.ID]; !ok {
		t.Error("班级未写入仓储")
	}
	if cache.version != 1 {
		t.Errorf("写入后应递增缓存版本，实际 %d", cache.version)
	}
}

func TestClassService_Create_DuplicateName(t *testing.T) {
	svc, repos, _ := setupTestClassService()
	repos.seedClass("c-1", "Class 1A", nil)

	_, err := svc.Create(context.Background(), &dto.CreateClassRequest{Name: "Class 1A"}, "scheduler")
	if !errors.Is(err, ErrClassNameExists) {
		t.Errorf("期望 ErrClassNameExists，实际: %v", err)
	}
}

func TestClassService_Create_PeriodOutOfRange(t *testing.T) {
	svc, _, _ := setupTestClassService()

	_, err := svc.Create(context.Background(), &dto.CreateClassRequest{
		Name:      "Class 1A",
		Conflicts: []dto.ConflictEntry{{Weekday: calendar.Friday, Periods: []int{9}}},
	}, "scheduler")
	if !errors.Is(err, ErrPeriodOutOfRange) {
		t.Errorf("期望 ErrPeriodOutOfRange，实际: %v", err)
	}
}

func TestClassService_Create_InvalidWeekday(t *testing.T) {
	svc, _, _ := setupTestClassService()

	_, err := svc.Create(context.Background(), &dto.CreateClassRequest{
		Name:      "Class 1A",
		Conflicts: []dto.ConflictEntry{{Weekday: calendar.Weekday(6), Periods: []int{1}}},
	}, "scheduler")
	if !errors.Is(err, ErrInvalidWeekdayData) {
		t.Errorf("期望 ErrInvalidWeekdayData，实际: %v", err)
	}
}

// ── Update / Delete 测试 ──

func TestClassService_Update_ReplacesConflicts(t *testing.T) {
	svc, repos, _ := setupTestClassService()
	repos.seedClass("c-1", "Class 1A", map[calendar.Weekday][]int{calendar.Monday: {1}})

	empty := []dto.ConflictEntry{}
	grade := 3
	resp, err := svc.Update(context.Background(), "c-1", &dto.UpdateClassRequest{GradeLevel: &grade, Conflicts: &empty}, "scheduler")
	if err != nil {
		t.Fatalf("期望更新成功，实际: %v", err)
	}
	if resp.GradeLevel != 3 || len(resp.Conflicts) != 0 {
		t.Errorf("更新结果不符: %+v", resp)
	}
}

func TestClassService_Update_RenameToExisting(t *testing.T) {
	svc, repos, _ := setupTestClassService()
	repos.seedClass("c-1", "Class 1A", nil)
	repos.seedClass("c-2", "Class 2B", nil)

	name := "Class 2B"
	_, err := svc.Update(context.Background(), "c-1", &dto.UpdateClassRequest{Name: &name}, "scheduler")
	if !errors.Is(err, ErrClassNameExists) {
		t.Errorf("期望 ErrClassNameExists，实际: %v", err)
	}
}

func TestClassService_NotFound(t *testing.T) {
	svc, _, _ := setupTestClassService()
	ctx := context.Background()

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("Get 期望 ErrClassNotFound，实际: %v", err)
	}
	if _, err := svc.Update(ctx, "missing", &dto.UpdateClassRequest{}, "scheduler"); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("Update 期望 ErrClassNotFound，实际: %v", err)
	}
	if err := svc.Delete(ctx, "missing"); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("Delete 期望 ErrClassNotFound，实际: %v", err)
	}
}

// ── Import 测试 ──

func TestClassService_Import_UpsertsByName(t *testing.T) {
	svc, repos, cache := setupTestClassService()
	repos.seedClass("c-1", "Class 1A", map[calendar.Weekday][]int{calendar.Friday: {8}})

	csv := csvHeaderLine +
		"Class 1A,1;2,,,,\n" +
		"Class 2B,,3,,,\n"
	resp, err := svc.Import(context.Background(), strings.NewReader(csv), "scheduler")
	if err != nil {
		t.Fatalf("期望导入成功，实际: %v", err)
	}
	if resp.Imported != 2 {
		t.Errorf("期望导入 2 个班级，实际 %d", resp.Imported)
	}
	if len(repos.class.classes) != 2 {
		t.Errorf("已有班级应按名称更新而非新增，实际共 %d 个", len(repos.class.classes))
	}
	updated := repos.class.classes["c-1"]
	if len(updated.Conflicts) != 1 || updated.Conflicts[0].Weekday != calendar.Monday {
		t.Errorf("不可排时段应整体替换为周一，实际 %+v", updated.Conflicts)
	}
	if cache.version != 1 {
		t.Errorf("导入后应递增缓存版本，实际 %d", cache.version)
	}
}

func TestClassService_Import_RespectsPeriodsPerDay(t *testing.T) {
	svc, repos, _ := setupTestClassService()

	// csv_max_periods=10，但每日只有 8 节
	_, err := svc.Import(context.Background(), strings.NewReader(csvHeaderLine+"Class 1A,9,,,,\n"), "scheduler")
	var ie *ImportError
	if !errors.As(err, &ie) {
		t.Fatalf("期望 *ImportError，实际: %v", err)
	}
	if ie.Errors[0].Code != CSVPeriodOutOfRange {
		t.Errorf("期望 PERIOD_OUT_OF_RANGE，实际 %s", ie.Errors[0].Code)
	}
	if len(repos.class.classes) != 0 {
		t.Error("校验失败时不应写入任何班级")
	}
}

func TestClassService_Import_Empty(t *testing.T) {
	svc, _, _ := setupTestClassService()

	_, err := svc.Import(context.Background(), strings.NewReader(csvHeaderLine), "scheduler")
	if !errors.Is(err, ErrImportEmpty) {
		t.Errorf("期望 ErrImportEmpty，实际: %v", err)
	}
}
