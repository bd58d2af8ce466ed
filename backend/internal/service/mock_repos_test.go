package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"thunder-scheduler/backend/config"
	"thunder-scheduler/backend/internal/calendar"
	"thunder-scheduler/backend/internal/model"
	"thunder-scheduler/backend/internal/repository"
	"thunder-scheduler/backend/internal/solver"
	"thunder-scheduler/backend/internal/validation"
	pkgerrors "thunder-scheduler/backend/pkg/errors"
	"thunder-scheduler/backend/pkg/redis"
)

// ── Mock ClassRepository ──

type mockClassRepo struct {
	classes map[string]*model.Class
	seq     int
}

func newMockClassRepo() *mockClassRepo {
	return &mockClassRepo{classes: make(map[string]*model.Class)}
}

func (m *mockClassRepo) nextID() string {
	m.seq++
	return fmt.Sprintf("class-%d", m.seq)
}

func (m *mockClassRepo) List(_ context.Context) ([]model.Class, error) {
	result := make([]model.Class, 0, len(m.classes))
	for _, c := range m.classes {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockClassRepo) GetByID(_ context.Context, id string) (*model.Class, error) {
	if c, ok := m.classes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassRepo) GetByName(_ context.Context, name string) (*model.Class, error) {
	for _, c := range m.classes {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassRepo) Create(_ context.Context, class *model.Class) error {
	if class.ClassID == "" {
		class.ClassID = m.nextID()
	}
	for i := range class.Conflicts {
		class.Conflicts[i].ClassID = class.ClassID
	}
	cp := *class
	m.classes[class.ClassID] = &cp
	return nil
}

func (m *mockClassRepo) Update(_ context.Context, class *model.Class) error {
	if _, ok := m.classes[class.ClassID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *class
	m.classes[class.ClassID] = &cp
	return nil
}

func (m *mockClassRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.classes[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.classes, id)
	return nil
}

func (m *mockClassRepo) UpsertByName(ctx context.Context, classes []model.Class) error {
	for i := range classes {
		if existing, err := m.GetByName(ctx, classes[i].Name); err == nil {
			classes[i].ClassID = existing.ClassID
			classes[i].GradeLevel = existing.GradeLevel
		} else {
			classes[i].ClassID = m.nextID()
		}
		for j := range classes[i].Conflicts {
			classes[i].Conflicts[j].ClassID = classes[i].ClassID
		}
		cp := classes[i]
		m.classes[cp.ClassID] = &cp
	}
	return nil
}

// ── Mock TeacherAvailabilityRepository ──

type mockAvailabilityRepo struct {
	records map[string]*model.TeacherAvailability
	seq     int
}

func newMockAvailabilityRepo() *mockAvailabilityRepo {
	return &mockAvailabilityRepo{records: make(map[string]*model.TeacherAvailability)}
}

func (m *mockAvailabilityRepo) ListByDateRange(_ context.Context, start, end time.Time) ([]model.TeacherAvailability, error) {
	var result []model.TeacherAvailability
	for _, r := range m.records {
		if !start.IsZero() && r.Date.Before(start) {
			continue
		}
		if !end.IsZero() && r.Date.After(end) {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *mockAvailabilityRepo) GetByID(_ context.Context, id string) (*model.TeacherAvailability, error) {
	if r, ok := m.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAvailabilityRepo) Create(_ context.Context, t *model.TeacherAvailability) error {
	if t.AvailabilityID == "" {
		m.seq++
		t.AvailabilityID = fmt.Sprintf("avail-%d", m.seq)
	}
	cp := *t
	m.records[t.AvailabilityID] = &cp
	return nil
}

func (m *mockAvailabilityRepo) BatchCreate(ctx context.Context, records []model.TeacherAvailability) error {
	for i := range records {
		if err := m.Create(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAvailabilityRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.records[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}

// ── Mock CalendarRepository ──

type mockCalendarRepo struct {
	classes      *mockClassRepo
	availability *mockAvailabilityRepo
	loads        int
}

func (m *mockCalendarRepo) LoadCalendar(ctx context.Context, start, end time.Time) (*repository.Calendar, error) {
	m.loads++
	classes, _ := m.classes.List(ctx)
	records, _ := m.availability.ListByDateRange(ctx, start, end)
	return &repository.Calendar{Classes: classes, TeacherAvailability: records}, nil
}

// ── Mock ScheduleRepository / AssignmentRepository ──

type mockScheduleRepo struct {
	schedules map[string]*model.Schedule
	seq       int
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{schedules: make(map[string]*model.Schedule)}
}

func (m *mockScheduleRepo) Create(_ context.Context, schedule *model.Schedule) error {
	if schedule.ScheduleID == "" {
		m.seq++
		schedule.ScheduleID = fmt.Sprintf("sched-%d", m.seq)
	}
	if schedule.Version == 0 {
		schedule.Version = 1
	}
	for i := range schedule.Assignments {
		schedule.Assignments[i].ScheduleID = schedule.ScheduleID
	}
	cp := *schedule
	cp.Assignments = append([]model.Assignment(nil), schedule.Assignments...)
	m.schedules[schedule.ScheduleID] = &cp
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id string) (*model.Schedule, error) {
	s, ok := m.schedules[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	cp.Assignments = append([]model.Assignment(nil), s.Assignments...)
	return &cp, nil
}

func (m *mockScheduleRepo) List(_ context.Context, offset, limit int) ([]model.Schedule, int64, error) {
	all := make([]model.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		cp := *s
		cp.Assignments = nil
		all = append(all, cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ScheduleID < all[j].ScheduleID })
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.schedules[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.schedules, id)
	return nil
}

type mockAssignmentRepo struct {
	schedules *mockScheduleRepo
	replaced  int
}

func (m *mockAssignmentRepo) ListBySchedule(_ context.Context, scheduleID string) ([]model.Assignment, error) {
	s, ok := m.schedules.schedules[scheduleID]
	if !ok {
		return nil, nil
	}
	return append([]model.Assignment(nil), s.Assignments...), nil
}

func (m *mockAssignmentRepo) ReplaceAll(_ context.Context, scheduleID string, assignments []model.Assignment, expectedVersion *int, updatedBy *string) error {
	s, ok := m.schedules.schedules[scheduleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if expectedVersion != nil && *expectedVersion != s.Version {
		return pkgerrors.ErrOptimisticLock
	}
	rows := make([]model.Assignment, len(assignments))
	for i, a := range assignments {
		a.ScheduleID = scheduleID
		rows[i] = a
	}
	s.Assignments = rows
	s.Version++
	s.UpdatedBy = updatedBy
	m.replaced++
	return nil
}

// ── Fake CalendarCache ──

type fakeCache struct {
	version int64
	data    map[string][]byte
	sets    int
	failAll bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) CalendarVersion(_ context.Context) (int64, error) {
	if c.failAll {
		return 0, fmt.Errorf("redis unavailable")
	}
	return c.version, nil
}

func (c *fakeCache) BumpCalendarVersion(_ context.Context) error {
	if c.failAll {
		return fmt.Errorf("redis unavailable")
	}
	c.version++
	return nil
}

func (c *fakeCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	return nil
}

// ── Fake Generator ──

type fakeGenerator struct {
	result  *solver.Result
	err     error
	lastReq *solver.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req *solver.Request) (*solver.Result, error) {
	g.lastReq = req
	return g.result, g.err
}

// ── 测试辅助 ──

// testRepos 聚合所有 mock repo 便于 seed 数据
type testRepos struct {
	class        *mockClassRepo
	availability *mockAvailabilityRepo
	calendar     *mockCalendarRepo
	schedule     *mockScheduleRepo
	assignment   *mockAssignmentRepo
}

func newTestRepos() *testRepos {
	classes := newMockClassRepo()
	availability := newMockAvailabilityRepo()
	schedules := newMockScheduleRepo()
	return &testRepos{
		class:        classes,
		availability: availability,
		calendar:     &mockCalendarRepo{classes: classes, availability: availability},
		schedule:     schedules,
		assignment:   &mockAssignmentRepo{schedules: schedules},
	}
}

func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		Class:               r.class,
		TeacherAvailability: r.availability,
		Calendar:            r.calendar,
		Schedule:            r.schedule,
		Assignment:          r.assignment,
	}
}

// seedClass 写入一个班级，conflicts 为 星期 → 节次
func (r *testRepos) seedClass(id, name string, conflicts map[calendar.Weekday][]int) {
	c := &model.Class{ClassID: id, Name: name}
	for day, periods := range conflicts {
		c.Conflicts = append(c.Conflicts, model.ClassConflict{ClassID: id, Weekday: day, Periods: model.IntArray(periods)})
	}
	r.class.classes[id] = c
}

// seedSchedule 写入一个方案（2025-09-01 起四周，默认约束）
func (r *testRepos) seedSchedule(id string, assignments ...calendar.Assignment) *model.Schedule {
	s := &model.Schedule{
		ScheduleID:    id,
		Name:          "秋季排课",
		StartDate:     mustDate("2025-09-01"),
		EndDate:       mustDate("2025-09-26"),
		RotationWeeks: 1,
		PeriodsPerDay: 8,
		Assignments:   model.AssignmentsFromCalendar(id, assignments),
	}
	s.SetConstraints(calendar.DefaultConstraints())
	s.Version = 1
	r.schedule.schedules[id] = s
	return s
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret-key-for-unit-tests", AccessTokenTTL: time.Hour},
		Schedule: config.ScheduleConfig{
			PeriodsPerDay: 8,
			RotationWeeks: 1,
			Constraints: config.ConstraintsConfig{
				MaxClassesPerDay:       4,
				MaxClassesPerWeek:      16,
				MaxConsecutiveClasses:  2,
				RequireBreakAfterClass: true,
			},
			Timezone:      "UTC",
			CSVMaxPeriods: 10,
		},
		Cache: config.CacheConfig{CalendarTTL: time.Minute},
	}
}

func newTestLoader(repos *testRepos, cache CalendarCache) *calendarLoader {
	return newCalendarLoader(repos.calendar, cache, time.Minute, zap.NewNop())
}

func newTestValidator() *validation.Orchestrator {
	return validation.NewOrchestrator()
}

func mustDate(s string) time.Time {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
