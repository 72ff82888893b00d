// Package models defines the data structures shared by the server, CLI and storage.
package models

import "time"

// DocumentStatus describes one manifest entry after a corpus load.
type DocumentStatus struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Loaded bool   `json:"loaded"`
	Pages  int    `json:"pages,omitempty"`
	Chars  int    `json:"chars,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CorpusStatus is the user-facing manifest of a corpus load.
type CorpusStatus struct {
	Key          string           `json:"key"`
	Documents    []DocumentStatus `json:"documents"`
	LoadedCount  int              `json:"loaded_count"`
	FailedCount  int              `json:"failed_count"`
	TotalChars   int              `json:"total_chars"`
	ContextChars int              `json:"context_chars"`
	Truncated    bool             `json:"truncated"`
	LoadedAt     time.Time        `json:"loaded_at"`
}
