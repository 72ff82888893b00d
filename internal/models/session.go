package models

import "time"

// TranscriptEntry is one user question or assistant reply.
type TranscriptEntry struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// SessionView is the client-visible state of a chat session.
type SessionView struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	Turns      int               `json:"turns"`
	Busy       bool              `json:"busy"`
	Transcript []TranscriptEntry `json:"transcript"`
}

// AskRequest is the body of a question or summary turn. Zero values fall back
// to the configured chat defaults.
type AskRequest struct {
	Question    string   `json:"question"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// AskResponse is the non-streaming reply to a turn.
type AskResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Model     string `json:"model"`
	Turns     int    `json:"turns"`
	ElapsedMS int64  `json:"elapsed_ms"`
}
