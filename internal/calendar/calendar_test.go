package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCalendarEventsAreRelativeToClock(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	cal := NewMockCalendar(func() time.Time { return now })

	events, err := cal.UpcomingEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Team Standup", events[0].Title)
	assert.Equal(t, now.Add(2*time.Hour), events[0].Start)
	assert.Equal(t, now.Add(3*time.Hour), events[0].End)
	assert.Equal(t, []string{"you", "client"}, events[1].Attendees)
	assert.Equal(t, now.Add(5*time.Hour), events[1].Start)
}

func TestMockCalendarEventLookup(t *testing.T) {
	cal := NewMockCalendar(nil)

	event, err := cal.Event(context.Background(), "event2")
	require.NoError(t, err)
	assert.Equal(t, "Client Call", event.Title)

	_, err = cal.Event(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}
