package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/dvloznov/agritool/internal/blob"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/logger"
)

// Dir is the blob prefix holding one profile record per user.
const Dir = "profiles"

// Store persists farm profiles, one whole record per username.
type Store struct {
	blobs blob.Store
}

// NewStore creates a profile store backed by blobs.
func NewStore(blobs blob.Store) *Store {
	return &Store{blobs: blobs}
}

// Load returns the saved profile or empty defaults. Absence is the normal
// state for a new user; an unreadable record is logged and treated the same.
func (s *Store) Load(ctx context.Context, username string) domain.Profile {
	log := logger.FromContext(ctx)

	data, err := s.blobs.Get(ctx, blob.UserKey(Dir, username))
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			log.Warn().Err(err).Str("username", username).Msg("Failed to read profile, using defaults")
		}
		return domain.Profile{}
	}

	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Corrupt profile record, using defaults")
		return domain.Profile{}
	}
	return p
}

// Save replaces the user's profile record with p.
func (s *Store) Save(ctx context.Context, username string, p domain.Profile) error {
	if p.FarmSize < 0 || math.IsNaN(p.FarmSize) || math.IsInf(p.FarmSize, 0) {
		return fmt.Errorf("%w: farm size must be a non-negative number of acres", domain.ErrValidation)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("profiles: encode: %w", err)
	}
	if err := s.blobs.Put(ctx, blob.UserKey(Dir, username), data, "application/json"); err != nil {
		return fmt.Errorf("profiles: write %s: %w: %v", username, domain.ErrPersistence, err)
	}
	return nil
}
