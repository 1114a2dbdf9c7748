package domain

import "time"

type EmailMessage struct {
	ID        string     `json:"id"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Sender    string     `json:"sender"`
	Timestamp *time.Time `json:"timestamp"`
	Urgency   string     `json:"urgency,omitempty"`
}

// Classification is the triage verdict for one email. Source is "ai" or
// "heuristic"; Model is set only for AI verdicts.
type Classification struct {
	Urgency   string `json:"urgency"`
	Category  string `json:"category"`
	Sentiment string `json:"sentiment"`
	Action    string `json:"action"`
	Summary   string `json:"summary"`
	Source    string `json:"source"`
	Model     string `json:"model,omitempty"`
}

type TaskSuggestion struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Priority         string     `json:"priority"`
	EstimatedMinutes int        `json:"estimated_minutes,omitempty"`
	DueDate          *string    `json:"due_date,omitempty"`
	SuggestedTime    *time.Time `json:"suggested_time,omitempty"`
	SourceEmailID    string     `json:"source_email_id,omitempty"`
}

const (
	SourceAI        = "ai"
	SourceHeuristic = "heuristic"
)
