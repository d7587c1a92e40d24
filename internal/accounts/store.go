// Package accounts is the credential store: a single shared record mapping
// username to display name and password hash.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/agritool/internal/blob"
	"github.com/dvloznov/agritool/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest password bcrypt hashes in full.
const maxPasswordBytes = 72

// RecordKey is the blob key of the shared credential record.
const RecordKey = "users.json"

// Store reads the credential record on every call and rewrites it in full on
// every registration. Concurrent registrations race; the later write wins.
type Store struct {
	blobs blob.Store
	cost  int
}

// NewStore creates a credential store backed by blobs.
func NewStore(blobs blob.Store) *Store {
	return &Store{blobs: blobs, cost: bcrypt.DefaultCost}
}

// NewStoreWithCost is NewStore with an explicit bcrypt cost, for tests and
// low-powered deployments.
func NewStoreWithCost(blobs blob.Store, cost int) *Store {
	return &Store{blobs: blobs, cost: cost}
}

type record struct {
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"password_hash"`
}

func (s *Store) load(ctx context.Context) (map[string]record, error) {
	data, err := s.blobs.Get(ctx, RecordKey)
	if errors.Is(err, blob.ErrNotFound) {
		return map[string]record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: read %s: %w: %v", RecordKey, domain.ErrPersistence, err)
	}

	users := map[string]record{}
	if len(data) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("accounts: decode %s: %w: %v", RecordKey, domain.ErrPersistence, err)
	}
	return users, nil
}

// Register creates an account. It fails with domain.ErrMissingField when any
// input is blank and domain.ErrDuplicateUsername when the username is taken.
func (s *Store) Register(ctx context.Context, username, displayName, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(displayName) == "" || password == "" {
		return domain.ErrMissingField
	}

	users, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, exists := users[username]; exists {
		return domain.ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return fmt.Errorf("%w: password must be at most 72 bytes", domain.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("accounts: hash password: %w", err)
	}
	users[username] = record{DisplayName: displayName, PasswordHash: string(hash)}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("accounts: encode: %w", err)
	}
	if err := s.blobs.Put(ctx, RecordKey, data, "application/json"); err != nil {
		return fmt.Errorf("accounts: write %s: %w: %v", RecordKey, domain.ErrPersistence, err)
	}
	return nil
}

// Authenticate checks password against the stored hash and returns the
// display name on success.
func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	users, err := s.load(ctx)
	if err != nil {
		return "", err
	}

	rec, ok := users[username]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	// bcrypt ignores bytes past 72, and Register never stores longer passwords.
	if len(password) > maxPasswordBytes {
		return "", domain.ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrWrongPassword
	}
	return rec.DisplayName, nil
}

// Get returns the account without checking credentials.
func (s *Store) Get(ctx context.Context, username string) (*domain.Account, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &domain.Account{Username: username, DisplayName: rec.DisplayName, PasswordHash: rec.PasswordHash}, nil
}

// Usernames lists every registered username, sorted.
func (s *Store) Usernames(ctx context.Context) ([]string, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
