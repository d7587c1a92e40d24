// Package ledger is the per-user append-only record of farm income and
// expenses, with aggregates recomputed from the full ledger on every read.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/agritool/internal/blob"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/google/uuid"
)

// Dir is the blob prefix holding one ledger record per user.
const Dir = "ledgers"

// Ledger reads and appends transaction records. Append is a full-file
// read-modify-write with no locking: two overlapping appends for the same
// user can lose one of them.
type Ledger struct {
	blobs     blob.Store
	validator *CategoryValidator
}

// New creates a ledger backed by blobs.
func New(blobs blob.Store) *Ledger {
	return &Ledger{
		blobs:     blobs,
		validator: NewCategoryValidator(),
	}
}

// List returns the user's records oldest first, or an empty slice.
func (l *Ledger) List(ctx context.Context, username string) ([]domain.Transaction, error) {
	data, err := l.blobs.Get(ctx, blob.UserKey(Dir, username))
	if errors.Is(err, blob.ErrNotFound) {
		return []domain.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w: %v", username, domain.ErrPersistence, err)
	}

	records := []domain.Transaction{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("ledger: decode %s: %w: %v", username, domain.ErrPersistence, err)
	}
	return records, nil
}

// Append validates tx and adds it to the end of the user's ledger.
// It returns the stored record, which carries a generated ID when tx had none.
func (l *Ledger) Append(ctx context.Context, username string, tx domain.Transaction) (domain.Transaction, error) {
	if !tx.Amount.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if !tx.Date.IsValid() {
		return domain.Transaction{}, fmt.Errorf("%w: invalid date %s", domain.ErrValidation, tx.Date)
	}
	category, err := l.validator.Canonical(tx.Type, tx.Category)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.Category = category
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	records, err := l.List(ctx, username)
	if err != nil {
		return domain.Transaction{}, err
	}
	records = append(records, tx)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ledger: encode: %w", err)
	}
	if err := l.blobs.Put(ctx, blob.UserKey(Dir, username), data, "application/json"); err != nil {
		return domain.Transaction{}, fmt.Errorf("ledger: write %s: %w: %v", username, domain.ErrPersistence, err)
	}
	return tx, nil
}

// Usernames lists the users that have a ledger record.
func (l *Ledger) Usernames(ctx context.Context) ([]string, error) {
	keys, err := l.blobs.List(ctx, Dir+"/")
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w: %v", domain.ErrPersistence, err)
	}
	var names []string
	for _, k := range keys {
		if name, ok := blob.UsernameFromKey(k); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
