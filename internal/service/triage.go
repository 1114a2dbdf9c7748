package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/brody/brody-back/internal/ai"
	"github.com/brody/brody-back/internal/calendar"
	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/logging"
)

const (
	NoBriefText       = "No AI brief available (using mock or fallback)"
	ClearDaySummary   = "Your day is clear. Brody is monitoring for updates."
	maxRelatedEmails  = 5
	heuristicSummary  = 100
	prepareLeadTime   = 15 * time.Minute
	urgentPrepWindow  = 3 * time.Hour
	prepareDayHorizon = 24 * time.Hour
)

var (
	highUrgencyWords = []string{"urgent", "asap", "important"}
	lowUrgencyWords  = []string{"fyi", "optional"}
)

type TriageDependencies struct {
	Assistant *ai.Assistant
	Calendar  calendar.Source
	Logger    *slog.Logger
	Now       func() time.Time
}

// TriageService answers the assistant endpoints. Every operation works
// without the AI gateway by falling back to deterministic heuristics.
type TriageService struct {
	assistant *ai.Assistant
	calendar  calendar.Source
	logger    *slog.Logger
	now       func() time.Time
}

func NewTriageService(deps TriageDependencies) *TriageService {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Calendar == nil {
		deps.Calendar = calendar.NewMockCalendar(deps.Now)
	}
	return &TriageService{
		assistant: deps.Assistant,
		calendar:  deps.Calendar,
		logger:    deps.Logger,
		now:       deps.Now,
	}
}

func (s *TriageService) AIAvailable() bool {
	return s.assistant.Available()
}

// Classify returns the AI verdict for email, or the subject keyword
// heuristic when the gateway is unavailable or produced nothing usable.
func (s *TriageService) Classify(ctx context.Context, email domain.EmailMessage) domain.Classification {
	if result, ok := s.assistant.ClassifyEmail(ctx, email.Subject, email.Body, email.Sender); ok {
		return domain.Classification{
			Urgency:   result.Urgency,
			Category:  result.Category,
			Sentiment: result.Sentiment,
			Action:    result.Action,
			Summary:   result.Summary,
			Source:    domain.SourceAI,
			Model:     result.Model,
		}
	}
	if s.assistant.Available() {
		s.logger.Info("classification fell back to heuristic", logging.Operation("classify_email"))
	}
	return HeuristicClassification(email.Subject)
}

// SuggestTasks returns up to three AI task suggestions, or a single
// follow-up task derived from the email.
func (s *TriageService) SuggestTasks(ctx context.Context, email domain.EmailMessage) []domain.TaskSuggestion {
	result, ok := s.assistant.SuggestTasks(ctx, email.Subject, email.Body, email.Sender)
	if !ok || len(result.Tasks) == 0 {
		return []domain.TaskSuggestion{FollowUpTask(email)}
	}

	tasks := make([]domain.TaskSuggestion, 0, len(result.Tasks))
	for index, task := range result.Tasks {
		tasks = append(tasks, domain.TaskSuggestion{
			ID:               fmt.Sprintf("task_%s_%d", email.ID, index+1),
			Title:            task.Title,
			Description:      task.Description,
			Priority:         firstNonEmpty(task.Priority, "medium"),
			EstimatedMinutes: task.EstimatedMinutes,
			DueDate:          task.DueDate,
			SourceEmailID:    email.ID,
		})
	}
	return tasks
}

type MeetingPlan struct {
	Event domain.Event `json:"event"`
	Brief domain.Brief `json:"brief"`
}

type DayPlan struct {
	Date     time.Time               `json:"date"`
	Meetings []MeetingPlan           `json:"meetings"`
	Tasks    []domain.TaskSuggestion `json:"tasks"`
	Summary  string                  `json:"summary"`
}

// PrepareDay briefs every event starting within the next 24 hours and adds a
// preparation task for each.
func (s *TriageService) PrepareDay(ctx context.Context) (DayPlan, error) {
	now := s.now().UTC()
	events, err := s.calendar.UpcomingEvents(ctx)
	if err != nil {
		return DayPlan{}, fmt.Errorf("list events: %w", err)
	}

	upcoming := make([]domain.Event, 0, len(events))
	for _, event := range events {
		if event.Start.Before(now) || event.Start.After(now.Add(prepareDayHorizon)) {
			continue
		}
		upcoming = append(upcoming, event)
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].Start.Before(upcoming[j].Start) })

	plan := DayPlan{
		Date:     now,
		Meetings: make([]MeetingPlan, 0, len(upcoming)),
		Tasks:    make([]domain.TaskSuggestion, 0, len(upcoming)),
		Summary:  ClearDaySummary,
	}
	for _, event := range upcoming {
		plan.Meetings = append(plan.Meetings, MeetingPlan{
			Event: event,
			Brief: s.brief(ctx, event, nil),
		})
		plan.Tasks = append(plan.Tasks, preparationTask(event, now))
	}
	if len(upcoming) > 0 {
		plan.Summary = daySummary(upcoming)
	}
	return plan, nil
}

type MeetingBriefInput struct {
	EventID        string
	IncludeRelated bool
	RelatedEmails  []domain.EmailMessage
}

// MeetingBrief briefs one calendar event. Related emails are summarised and
// handed to the model when IncludeRelated is set.
func (s *TriageService) MeetingBrief(ctx context.Context, input MeetingBriefInput) (domain.Event, domain.Brief, error) {
	event, err := s.calendar.Event(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			return domain.Event{}, domain.Brief{}, ErrNotFound
		}
		return domain.Event{}, domain.Brief{}, fmt.Errorf("load event: %w", err)
	}

	var related []string
	if input.IncludeRelated {
		related = s.relatedSummaries(ctx, input.RelatedEmails)
	}
	return event, s.brief(ctx, event, related), nil
}

func (s *TriageService) brief(ctx context.Context, event domain.Event, related []string) domain.Brief {
	result, ok := s.assistant.MeetingBrief(ctx, ai.MeetingBriefInput{
		Title:            event.Title,
		When:             event.Start.Format(time.RFC3339),
		Attendees:        event.Attendees,
		Description:      event.Description,
		RelatedSummaries: related,
	})
	if !ok {
		return domain.Brief{EventID: event.ID, Text: NoBriefText, Source: domain.SourceHeuristic}
	}
	return domain.Brief{EventID: event.ID, Text: result.Text, Source: domain.SourceAI, Model: result.Model}
}

func (s *TriageService) relatedSummaries(ctx context.Context, emails []domain.EmailMessage) []string {
	if len(emails) > maxRelatedEmails {
		emails = emails[:maxRelatedEmails]
	}
	summaries := make([]string, 0, len(emails))
	for _, email := range emails {
		if summary, ok := s.assistant.SummarizeEmail(ctx, email.Subject, email.Body); ok {
			summaries = append(summaries, summary)
			continue
		}
		if subject := strings.TrimSpace(email.Subject); subject != "" {
			summaries = append(summaries, subject)
		}
	}
	return summaries
}

// HeuristicClassification derives urgency from subject keywords only.
func HeuristicClassification(subject string) domain.Classification {
	urgency := HeuristicUrgency(subject)
	action := "fyi"
	if urgency == "high" {
		action = "response_needed"
	}
	return domain.Classification{
		Urgency:   urgency,
		Category:  "work",
		Sentiment: "neutral",
		Action:    action,
		Summary:   truncateRunes(subject, heuristicSummary),
		Source:    domain.SourceHeuristic,
	}
}

func HeuristicUrgency(subject string) string {
	lowered := strings.ToLower(subject)
	for _, word := range highUrgencyWords {
		if strings.Contains(lowered, word) {
			return "high"
		}
	}
	for _, word := range lowUrgencyWords {
		if strings.Contains(lowered, word) {
			return "low"
		}
	}
	return "medium"
}

func FollowUpTask(email domain.EmailMessage) domain.TaskSuggestion {
	return domain.TaskSuggestion{
		ID:            "task_" + email.ID,
		Title:         "Follow up: " + email.Subject,
		Description:   "Review and respond to email from " + email.Sender,
		Priority:      "medium",
		SourceEmailID: email.ID,
	}
}

func preparationTask(event domain.Event, now time.Time) domain.TaskSuggestion {
	priority := "medium"
	if event.Start.Sub(now) <= urgentPrepWindow {
		priority = "high"
	}
	suggested := event.Start.Add(-prepareLeadTime)
	if suggested.Before(now) {
		suggested = now
	}
	return domain.TaskSuggestion{
		ID:               "prep_" + event.ID,
		Title:            "Prepare for " + event.Title,
		Description:      strings.TrimSpace("Review the agenda. " + event.Description),
		Priority:         priority,
		EstimatedMinutes: int(prepareLeadTime.Minutes()),
		SuggestedTime:    &suggested,
	}
}

func daySummary(events []domain.Event) string {
	noun := "meetings"
	if len(events) == 1 {
		noun = "meeting"
	}
	first := events[0]
	return fmt.Sprintf(
		"You have %d %s coming up. First: %s at %s UTC.",
		len(events), noun, first.Title, first.Start.UTC().Format("15:04"),
	)
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
