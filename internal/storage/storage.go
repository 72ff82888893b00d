// Package storage defines the persistence interface for exported transcripts.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/examchat/internal/models"
)

// ErrNotFound is returned when an export does not exist.
var ErrNotFound = errors.New("export not found")

// Storage defines export archive operations.
type Storage interface {
	SaveExport(ctx context.Context, exp *models.Export) error
	GetExport(ctx context.Context, id string) (*models.Export, error)
	DeleteExport(ctx context.Context, id string) error

	// List operations omit Content.
	ListExports(ctx context.Context, offset, limit int) ([]*models.Export, error)
	ListExportsBySession(ctx context.Context, sessionID string) ([]*models.Export, error)

	CountExports(ctx context.Context) (int64, error)
	SizeBytes() (int64, error)

	Close() error
}
