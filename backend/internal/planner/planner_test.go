package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thunder-scheduler/backend/internal/calendar"
)

func TestParseDropID(t *testing.T) {
	p, err := ParseDropID("MONDAY-3")
	require.NoError(t, err)
	assert.Equal(t, Position{Weekday: calendar.Monday, Period: 3}, p)
	assert.Equal(t, "MONDAY-3", p.DropID())

	for _, bad := range []string{"", "MONDAY", "SUNDAY-1", "MONDAY-x"} {
		_, err := ParseDropID(bad)
		assert.ErrorIs(t, err, ErrInvalidDropID, bad)
	}
}

func TestFromDrop(t *testing.T) {
	pl := New(8, 2)

	m, err := pl.FromDrop(DropEvent{ClassID: "C1", Source: "MONDAY-1", Destination: "TUESDAY-2", Week: 1})
	require.NoError(t, err)
	assert.Equal(t, calendar.Assignment{ClassID: "C1", Weekday: calendar.Monday, Period: 1, Week: 1}, m.Source())
	assert.Equal(t, calendar.Assignment{ClassID: "C1", Weekday: calendar.Tuesday, Period: 2, Week: 1}, m.Target())
}

func TestFromDropRejects(t *testing.T) {
	pl := New(8, 2)

	_, err := pl.FromDrop(DropEvent{ClassID: "C1", Source: "MONDAY-1", Week: 1})
	assert.ErrorIs(t, err, ErrNoDestination)

	_, err = pl.FromDrop(DropEvent{ClassID: "C1", Source: "MONDAY-1", Destination: "MONDAY-1", Week: 1})
	assert.ErrorIs(t, err, ErrNoMovement)

	_, err = pl.FromDrop(DropEvent{ClassID: "C1", Source: "MONDAY-1", Destination: "MONDAY-9", Week: 1})
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = pl.FromDrop(DropEvent{ClassID: "C1", Source: "MONDAY-1", Destination: "MONDAY-2", Week: 3})
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = pl.FromDrop(DropEvent{Source: "MONDAY-1", Destination: "MONDAY-2", Week: 1})
	assert.ErrorIs(t, err, ErrMissingClass)
}
