package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseWeekday(t *testing.T) {
	cases := map[string]Weekday{
		"MONDAY":     Monday,
		"tuesday":    Tuesday,
		" Wednesday": Wednesday,
		"THU":        Thursday,
		"fri":        Friday,
	}
	for in, want := range cases {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseWeekday("SATURDAY")
	assert.ErrorIs(t, err, ErrInvalidWeekday)
}

func TestWeekdayJSON(t *testing.T) {
	b, err := json.Marshal(Assignment{ClassID: "c1", Weekday: Thursday, Period: 3, Week: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"class_id":"c1","weekday":"THURSDAY","period":3,"week":2}`, string(b))

	var a Assignment
	require.NoError(t, json.Unmarshal([]byte(`{"class_id":"c1","weekday":"monday","period":1,"week":1}`), &a))
	assert.Equal(t, Monday, a.Weekday)

	assert.Error(t, json.Unmarshal([]byte(`{"weekday":"SUNDAY"}`), &a))

	_, err = Weekday(0).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidWeekday)
}

func TestWeekdayScanValue(t *testing.T) {
	v, err := Friday.Value()
	require.NoError(t, err)
	assert.Equal(t, "FRIDAY", v)

	var d Weekday
	require.NoError(t, d.Scan([]byte("TUESDAY")))
	assert.Equal(t, Tuesday, d)
	assert.Error(t, d.Scan(42))
}

func TestAssignmentValidate(t *testing.T) {
	ok := Assignment{ClassID: "c", Weekday: Monday, Period: 8, Week: 2}
	assert.NoError(t, ok.Validate(8, 2))

	assert.ErrorIs(t, Assignment{Weekday: Monday, Period: 9, Week: 1}.Validate(8, 2), ErrInvalidPeriod)
	assert.ErrorIs(t, Assignment{Weekday: Monday, Period: 0, Week: 1}.Validate(8, 2), ErrInvalidPeriod)
	assert.ErrorIs(t, Assignment{Weekday: Monday, Period: 1, Week: 3}.Validate(8, 2), ErrInvalidWeek)
	assert.ErrorIs(t, Assignment{Weekday: 6, Period: 1, Week: 1}.Validate(8, 2), ErrInvalidWeekday)
}

func TestConstraintsValidate(t *testing.T) {
	assert.NoError(t, DefaultConstraints().Validate())

	c := DefaultConstraints()
	c.MaxConsecutiveClasses = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidConstraints)
}

func TestMergeConflicts(t *testing.T) {
	merged := MergeConflicts([]ClassConflict{
		{ClassID: "b", Weekday: Monday, Periods: []int{3}},
		{ClassID: "a", Weekday: Tuesday, Periods: []int{5, 1}},
		{ClassID: "a", Weekday: Tuesday, Periods: []int{1, 2}},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, ClassConflict{ClassID: "a", Weekday: Tuesday, Periods: []int{1, 2, 5}}, merged[0])
	assert.Equal(t, "b", merged[1].ClassID)

	idx := BuildConflictIndex(merged)
	assert.True(t, idx.Blocked("a", Tuesday, 5))
	assert.False(t, idx.Blocked("a", Monday, 5))
	assert.False(t, idx.Blocked("missing", Monday, 1))
}

func TestRotationAnchor(t *testing.T) {
	// 2024-09-04 为周三
	assert.Equal(t, date("2024-09-02"), RotationAnchor(date("2024-09-04")))
	assert.Equal(t, date("2024-09-02"), RotationAnchor(date("2024-09-02")))
	// 周六、周日起始顺延到下周一
	assert.Equal(t, date("2024-09-09"), RotationAnchor(date("2024-09-07")))
	assert.Equal(t, date("2024-09-09"), RotationAnchor(date("2024-09-08")))
}

func TestSlotDates(t *testing.T) {
	start := date("2024-09-02")

	dates := SlotDates(start, time.Time{}, 2, Wednesday, 2)
	assert.Equal(t, []time.Time{date("2024-09-11")}, dates)

	dates = SlotDates(start, date("2024-09-30"), 2, Monday, 1)
	assert.Equal(t, []time.Time{date("2024-09-02"), date("2024-09-16"), date("2024-09-30")}, dates)

	assert.Nil(t, SlotDates(start, time.Time{}, 2, Weekday(7), 1))
}

func TestResolveDate(t *testing.T) {
	start := date("2024-09-02")

	d, w, ok := ResolveDate(start, 2, date("2024-09-11"))
	require.True(t, ok)
	assert.Equal(t, Wednesday, d)
	assert.Equal(t, 2, w)

	d, w, ok = ResolveDate(start, 2, date("2024-09-16"))
	require.True(t, ok)
	assert.Equal(t, Monday, d)
	assert.Equal(t, 1, w)

	_, _, ok = ResolveDate(start, 2, date("2024-09-14"))
	assert.False(t, ok)
	_, _, ok = ResolveDate(start, 2, date("2024-08-30"))
	assert.False(t, ok)
}

func TestBlackoutIndex(t *testing.T) {
	idx := BuildBlackoutIndex([]TeacherAvailability{
		{Date: date("2024-09-03"), BlockedPeriods: []int{1, 2}, Reason: "培训"},
		{Date: date("2024-09-03").Add(13 * time.Hour), BlockedPeriods: []int{6}, Reason: "会议"},
	})

	blocked, reason := idx.Blocked(date("2024-09-03"), 6)
	assert.True(t, blocked)
	assert.Equal(t, "会议; 培训", reason)

	blocked, _ = idx.Blocked(date("2024-09-03"), 3)
	assert.False(t, blocked)
	blocked, _ = idx.Blocked(date("2024-09-04"), 1)
	assert.False(t, blocked)
}

func TestSortAssignments(t *testing.T) {
	as := []Assignment{
		{ClassID: "b", Weekday: Tuesday, Period: 1, Week: 1},
		{ClassID: "b", Weekday: Monday, Period: 2, Week: 1},
		{ClassID: "a", Weekday: Monday, Period: 2, Week: 1},
		{ClassID: "c", Weekday: Monday, Period: 1, Week: 2},
	}
	SortAssignments(as)
	assert.Equal(t, []string{"c", "a", "b", "b"}, []string{as[0].ClassID, as[1].ClassID, as[2].ClassID, as[3].ClassID})
}
