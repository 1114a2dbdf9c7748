package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/brody/brody-back/internal/domain"
)

var ErrEventNotFound = errors.New("event not found")

// Source lists calendar events for the current user.
type Source interface {
	UpcomingEvents(ctx context.Context) ([]domain.Event, error)
	Event(ctx context.Context, eventID string) (domain.Event, error)
}

// MockCalendar serves two fixed events placed relative to the clock. It
// stands in until a real calendar provider is connected.
type MockCalendar struct {
	now func() time.Time
}

func NewMockCalendar(now func() time.Time) *MockCalendar {
	if now == nil {
		now = time.Now
	}
	return &MockCalendar{now: now}
}

func (c *MockCalendar) UpcomingEvents(_ context.Context) ([]domain.Event, error) {
	now := c.now().UTC()
	return []domain.Event{
		{
			ID:          "event1",
			Title:       "Team Standup",
			Start:       now.Add(2 * time.Hour),
			End:         now.Add(3 * time.Hour),
			Attendees:   []string{"you", "team"},
			Description: "Daily sync meeting",
		},
		{
			ID:          "event2",
			Title:       "Client Call",
			Start:       now.Add(5 * time.Hour),
			End:         now.Add(6 * time.Hour),
			Attendees:   []string{"you", "client"},
			Description: "Quarterly review",
		},
	}, nil
}

func (c *MockCalendar) Event(ctx context.Context, eventID string) (domain.Event, error) {
	events, err := c.UpcomingEvents(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	for _, event := range events {
		if event.ID == eventID {
			return event, nil
		}
	}
	return domain.Event{}, ErrEventNotFound
}
