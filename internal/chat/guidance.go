package chat

import (
	"errors"
	"fmt"

	"github.com/hyperjump/examchat/internal/llm"
)

// Guidance returns a short message telling the user what to do about err.
func Guidance(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrAuthMissing):
		return "Configure your API key: pass it with the request or store it with `examchat key set`."
	case errors.Is(err, ErrEmptyQuestion):
		return "Type a question about the exam documents."
	case errors.Is(err, ErrTurnInProgress):
		return "Wait for the current answer to finish before asking again."
	case errors.Is(err, ErrEmptyTranscript):
		return "Ask a question first; there is nothing to export yet."
	case errors.Is(err, ErrUnknownModel):
		return "Pick one of the configured models."
	case errors.Is(err, llm.ErrInvalidRequest):
		return "Check the sampling settings: temperature must be between 0 and 1 and max tokens positive."
	}
	var apiErr *llm.Error
	if !errors.As(err, &apiErr) {
		return fmt.Sprintf("Unexpected error: %v", err)
	}
	switch apiErr.Kind {
	case llm.KindTimeout:
		return "The chat API timed out. Try again with a more specific question."
	case llm.KindConnection:
		return "Could not reach the chat API. Check your internet connection."
	case llm.KindRequestFailed:
		return fmt.Sprintf("The chat API rejected the request (%d): %s", apiErr.StatusCode, apiErr.Detail)
	case llm.KindCanceled:
		return "The request was canceled."
	default:
		return "The answer stream was interrupted. Try again."
	}
}
