package domain

import "time"

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees"`
	Description string    `json:"description"`
}

type Brief struct {
	EventID string `json:"event_id"`
	Text    string `json:"text"`
	Source  string `json:"source"`
	Model   string `json:"model,omitempty"`
}
