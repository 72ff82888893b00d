package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/examchat/internal/models"
)

// ExportFilename returns the download name for a session's transcript.
func ExportFilename(sessionID string) string {
	return "conversation_" + sessionID + ".md"
}

// Export renders the transcript as markdown: a dated title, then one
// "**ROLE:** message" section per entry separated by horizontal rules.
func Export(sess *Session, now time.Time) (*models.Export, error) {
	entries := sess.Transcript()
	if len(entries) == 0 {
		return nil, ErrEmptyTranscript
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation - %s\n\n", now.Format("2006-01-02 15:04"))
	for _, e := range entries {
		fmt.Fprintf(&b, "**%s:** %s\n\n---\n\n", strings.ToUpper(string(e.Role)), e.Content)
	}
	return &models.Export{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Filename:  ExportFilename(sess.ID),
		Content:   b.String(),
		Entries:   len(entries),
		CreatedAt: now,
	}, nil
}

// View returns the client-visible state of sess.
func View(sess *Session) *models.SessionView {
	entries := sess.Transcript()
	v := &models.SessionView{
		ID:         sess.ID,
		CreatedAt:  sess.CreatedAt,
		Turns:      sess.Turns(),
		Busy:       sess.Busy(),
		Transcript: make([]models.TranscriptEntry, 0, len(entries)),
	}
	for _, e := range entries {
		v.Transcript = append(v.Transcript, models.TranscriptEntry{Role: string(e.Role), Content: e.Content, At: e.At})
	}
	return v
}
