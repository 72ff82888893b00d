package models

import "time"

// Export is a transcript rendered as markdown, as downloaded and archived.
type Export struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Filename  string    `json:"filename" db:"filename"`
	Content   string    `json:"content,omitempty" db:"content"`
	Entries   int       `json:"entries" db:"entries"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
