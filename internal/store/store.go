// Package store persists decision dossiers. Dossiers are immutable: every
// save of the same claim creates a new version, nothing is overwritten
package store

//go:generate mockgen -source=store.go -destination=mock_store.go -package=store DecisionStore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/adjudex/internal/model"
)

// ErrNotFound is returned when no dossier matches the lookup
var ErrNotFound = errors.New("dossier not found")

// DecisionStore saves and loads versioned dossiers
type DecisionStore interface {
	// Save assigns the next version for the claim, stores the dossier and returns the version
	Save(ctx context.Context, d *model.Dossier) (int, error)
	Get(ctx context.Context, claimID string, version int) (*model.Dossier, error)
	Latest(ctx context.Context, claimID string) (*model.Dossier, error)
	// List returns all versions of a claim, oldest first
	List(ctx context.Context, claimID string) ([]model.Dossier, error)
	Close() error
}

// Open creates the store selected by configuration
func Open(ctx context.Context, cfg model.StoreConfig) (DecisionStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

func validate(d *model.Dossier) error {
	if d == nil {
		return fmt.Errorf("dossier is nil")
	}
	if d.ClaimID == "" {
		return fmt.Errorf("dossier has no claim id")
	}
	return nil
}
