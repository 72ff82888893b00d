// Package chat runs conversation turns over the loaded corpus and keeps the
// per-session transcript.
package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/examchat/internal/llm"
)

var (
	// ErrEmptyQuestion is returned when a question is blank.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrAuthMissing is returned when no API key was supplied or stored.
	ErrAuthMissing = errors.New("API key is not configured")
	// ErrTurnInProgress is returned when a session already has a turn in flight.
	ErrTurnInProgress = errors.New("another turn is in progress for this session")
	// ErrUnknownModel is returned when a model outside the configured list is requested.
	ErrUnknownModel = errors.New("model is not allowed")
	// ErrEmptyTranscript is returned when exporting a session with no entries.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Entry is one transcript line.
type Entry struct {
	Role    llm.Role  `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session owns one user's transcript and turn counter. All methods are safe for
// concurrent use; at most one turn runs at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	transcript []Entry
	turns      int
	busy       bool
}

// NewSession creates an empty session with a fresh ID.
func NewSession(now time.Time) *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: now}
}

// Transcript returns a copy of the entries in chronological order.
func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Len returns the number of transcript entries.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// Turns returns how many questions were asked since the last clear.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrTurnInProgress
	}
	s.busy = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// startQuestion counts the turn and records the question.
func (s *Session) startQuestion(question string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns++
	s.transcript = append(s.transcript, Entry{Role: llm.RoleUser, Content: question, At: at})
}

func (s *Session) appendReply(reply string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Entry{Role: llm.RoleAssistant, Content: reply, At: at})
}

// clear empties the transcript and resets the turn counter.
func (s *Session) clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrTurnInProgress
	}
	s.transcript = nil
	s.turns = 0
	return nil
}
