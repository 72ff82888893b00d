package server

import (
	"errors"
	"net/http"

	"github.com/hyperjump/examchat/internal/chat"
	"github.com/hyperjump/examchat/internal/llm"
	"github.com/hyperjump/examchat/internal/storage"
)

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrAuthMissing):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrEmptyQuestion),
		errors.Is(err, chat.ErrUnknownModel),
		errors.Is(err, chat.ErrEmptyTranscript),
		errors.Is(err, llm.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}
	kind, ok := llm.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case llm.KindTimeout:
		return http.StatusGatewayTimeout
	case llm.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

type errorResponse struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Guidance string `json:"guidance,omitempty"`
}

func errorBody(err error) errorResponse {
	body := errorResponse{Error: err.Error()}
	if kind, ok := llm.KindOf(err); ok {
		body.Kind = kind.String()
	}
	if !errors.Is(err, storage.ErrNotFound) {
		body.Guidance = chat.Guidance(err)
	}
	return body
}
