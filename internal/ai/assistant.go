package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MaxEmailBodyChars bounds how much of an email body goes into a prompt.
const MaxEmailBodyChars = 2000

const maxSuggestedTasks = 3

type EmailClassification struct {
	Urgency   string `json:"urgency"`
	Category  string `json:"category"`
	Sentiment string `json:"sentiment"`
	Action    string `json:"action"`
	Summary   string `json:"summary"`
	Model     string `json:"model,omitempty"`
}

type SuggestedTask struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Priority         string  `json:"priority"`
	EstimatedMinutes int     `json:"estimated_minutes"`
	DueDate          *string `json:"due_date"`
}

type TaskSuggestions struct {
	Tasks []SuggestedTask `json:"tasks"`
	Model string          `json:"model,omitempty"`
}

type MeetingBriefInput struct {
	Title            string
	When             string
	Attendees        []string
	Description      string
	RelatedSummaries []string
}

type MeetingBrief struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// Assistant turns domain requests into gateway calls and parses the answers.
// Every method returns ok=false when the gateway is unavailable or nothing
// usable came back; callers fall back to their own heuristics.
type Assistant struct {
	gateway *Gateway
}

func NewAssistant(gateway *Gateway) *Assistant {
	return &Assistant{gateway: gateway}
}

func (a *Assistant) Available() bool {
	return a != nil && a.gateway.Available()
}

func (a *Assistant) ClassifyEmail(ctx context.Context, subject, body, sender string) (EmailClassification, bool) {
	if !a.Available() {
		return EmailClassification{}, false
	}
	result := a.complete(ctx, TaskEmailClassification, BuildClassificationRequest(subject, body, sender))
	if !result.HasContent() {
		return EmailClassification{}, false
	}

	classification, ok := ParseClassification(result.Text)
	if !ok {
		return EmailClassification{}, false
	}
	classification.Model = result.Model
	return classification, true
}

func (a *Assistant) SuggestTasks(ctx context.Context, subject, body, sender string) (TaskSuggestions, bool) {
	if !a.Available() {
		return TaskSuggestions{}, false
	}
	result := a.complete(ctx, TaskTaskGeneration, BuildTaskSuggestionRequest(subject, body, sender))
	if !result.HasContent() {
		return TaskSuggestions{}, false
	}

	tasks, ok := ParseTaskSuggestions(result.Text)
	if !ok {
		return TaskSuggestions{}, false
	}
	return TaskSuggestions{Tasks: tasks, Model: result.Model}, true
}

// MeetingBrief returns the model's text as is. The word budget lives in the
// prompt only.
func (a *Assistant) MeetingBrief(ctx context.Context, input MeetingBriefInput) (MeetingBrief, bool) {
	if !a.Available() {
		return MeetingBrief{}, false
	}
	result := a.complete(ctx, TaskMeetingBrief, BuildMeetingBriefRequest(input))
	if !result.HasContent() {
		return MeetingBrief{}, false
	}
	return MeetingBrief{Text: result.Text, Model: result.Model}, true
}

// SummarizeEmail produces a one-sentence summary used as related context for
// meeting briefs.
func (a *Assistant) SummarizeEmail(ctx context.Context, subject, body string) (string, bool) {
	if !a.Available() {
		return "", false
	}
	result := a.complete(ctx, TaskSummarization, BuildSummaryRequest(subject, body))
	if !result.HasContent() {
		return "", false
	}
	return strings.TrimSpace(result.Text), true
}

func (a *Assistant) complete(ctx context.Context, task Task, request ChatRequest) ChatResult {
	return a.gateway.Complete(ctx, task, a.gateway.Models().ModelFor(task), request)
}

func BuildClassificationRequest(subject, body, sender string) ChatRequest {
	return NewChatRequest(0.1, 400,
		ChatMessage{Role: RoleSystem, Content: "You are an expert email triage assistant. Return ONLY valid JSON."},
		ChatMessage{Role: RoleUser, Content: "Analyze the email and return JSON with keys: urgency (high|medium|low), " +
			"category (work|personal|promotional|newsletter|meeting|task), sentiment (positive|neutral|negative), " +
			"action (response_needed|fyi|action_item|meeting_invite), summary (<=25 words).\n\n" +
			emailContext(subject, body, sender)},
	)
}

func BuildTaskSuggestionRequest(subject, body, sender string) ChatRequest {
	return NewChatRequest(0.3, 700,
		ChatMessage{Role: RoleSystem, Content: "You are a productivity expert. Return ONLY a JSON array of tasks."},
		ChatMessage{Role: RoleUser, Content: "From the email, generate 1-3 actionable tasks as a JSON array. Each task has: " +
			"title, description, priority (high|medium|low), estimated_minutes (int), due_date (ISO8601 or null).\n\n" +
			emailContext(subject, body, sender)},
	)
}

func BuildMeetingBriefRequest(input MeetingBriefInput) ChatRequest {
	var details strings.Builder
	fmt.Fprintf(&details, "Title: %s\nTime: %s\nAttendees: %s\nDescription: %s\n",
		input.Title, input.When, strings.Join(input.Attendees, ", "), input.Description)
	if len(input.RelatedSummaries) > 0 {
		related := input.RelatedSummaries
		if len(related) > 5 {
			related = related[:5]
		}
		details.WriteString("\nRelated recent emails (summaries):\n- ")
		details.WriteString(strings.Join(related, "\n- "))
	}

	return NewChatRequest(0.4, 800,
		ChatMessage{Role: RoleSystem, Content: "You are an executive assistant. Return a concise bullet-style meeting brief."},
		ChatMessage{Role: RoleUser, Content: "Create a meeting brief with sections: Objective, Agenda (3-5 bullets), Key Context, Pre-reads, " +
			"Questions to Ask, Expected Outcomes. Keep it under 250 words.\n\n" + details.String()},
	)
}

func BuildSummaryRequest(subject, body string) ChatRequest {
	return NewChatRequest(0.2, 200,
		ChatMessage{Role: RoleSystem, Content: "You summarize emails in one plain sentence. No preamble."},
		ChatMessage{Role: RoleUser, Content: "Summarize this email in at most 25 words.\n\n" +
			"Subject: " + subject + "\nBody: " + TruncateBody(body)},
	)
}

func emailContext(subject, body, sender string) string {
	return "Subject: " + subject + "\nFrom: " + sender + "\nBody: " + TruncateBody(body)
}

// TruncateBody keeps the first MaxEmailBodyChars characters of body.
func TruncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= MaxEmailBodyChars {
		return body
	}
	return string(runes[:MaxEmailBodyChars])
}

// ParseClassification decodes a classification object from model output.
func ParseClassification(text string) (EmailClassification, bool) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return EmailClassification{}, false
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return EmailClassification{}, false
	}
	return EmailClassification{
		Urgency:   stringField(fields, "urgency"),
		Category:  stringField(fields, "category"),
		Sentiment: stringField(fields, "sentiment"),
		Action:    stringField(fields, "action"),
		Summary:   stringField(fields, "summary"),
	}, true
}

// ParseTaskSuggestions decodes up to three task objects from model output.
// Anything that is not an array of objects yields ok=false.
func ParseTaskSuggestions(text string) ([]SuggestedTask, bool) {
	raw, ok := extractJSONArray(text)
	if !ok {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}

	tasks := make([]SuggestedTask, 0, maxSuggestedTasks)
	for _, item := range items {
		fields, isObject := item.(map[string]any)
		if !isObject {
			continue
		}
		task := SuggestedTask{
			Title:            stringField(fields, "title"),
			Description:      stringField(fields, "description"),
			Priority:         stringField(fields, "priority"),
			EstimatedMinutes: intField(fields, "estimated_minutes"),
		}
		if due := stringField(fields, "due_date"); due != "" {
			task.DueDate = &due
		}
		tasks = append(tasks, task)
		if len(tasks) == maxSuggestedTasks {
			break
		}
	}
	if len(tasks) == 0 {
		return nil, false
	}
	return tasks, true
}

func stringField(fields map[string]any, key string) string {
	switch value := fields[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func intField(fields map[string]any, key string) int {
	switch value := fields[key].(type) {
	case float64:
		return int(value)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
