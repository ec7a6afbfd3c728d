package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ppiankov/adjudex/internal/model"
)

// MemoryStore keeps dossiers in process memory. Dossiers are stored as
// encoded copies so callers cannot mutate saved versions
type MemoryStore struct {
	mu      sync.RWMutex
	dossier map[string][][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{dossier: make(map[string][][]byte)}
}

// Save implements DecisionStore
func (s *MemoryStore) Save(ctx context.Context, d *model.Dossier) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validate(d); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version := len(s.dossier[d.ClaimID]) + 1
	stored := *d
	stored.Version = version
	data, err := json.Marshal(&stored)
	if err != nil {
		return 0, fmt.Errorf("failed to encode dossier: %w", err)
	}
	s.dossier[d.ClaimID] = append(s.dossier[d.ClaimID], data)
	d.Version = version
	return version, nil
}

// Get implements DecisionStore
func (s *MemoryStore) Get(ctx context.Context, claimID string, version int) (*model.Dossier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.dossier[claimID]
	if version < 1 || version > len(versions) {
		return nil, fmt.Errorf("%s v%d: %w", claimID, version, ErrNotFound)
	}
	return decode(versions[version-1])
}

// Latest implements DecisionStore
func (s *MemoryStore) Latest(ctx context.Context, claimID string) (*model.Dossier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.dossier[claimID]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%s: %w", claimID, ErrNotFound)
	}
	return decode(versions[len(versions)-1])
}

// List implements DecisionStore
func (s *MemoryStore) List(ctx context.Context, claimID string) ([]model.Dossier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Dossier, 0, len(s.dossier[claimID]))
	for _, data := range s.dossier[claimID] {
		d, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// Close implements DecisionStore
func (s *MemoryStore) Close() error {
	return nil
}

func decode(data []byte) (*model.Dossier, error) {
	var d model.Dossier
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode dossier: %w", err)
	}
	return &d, nil
}
