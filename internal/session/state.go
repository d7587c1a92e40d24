// Package session holds the per-browser navigation state: who is logged in,
// which tool is active and the conversation so far.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/tools"
)

var (
	// ErrNotAuthenticated is returned for transitions that need a logged-in user.
	ErrNotAuthenticated = fmt.Errorf("%w: login required", domain.ErrAuth)

	// ErrAlreadyAuthenticated is returned by Login on an authenticated session.
	ErrAlreadyAuthenticated = errors.New("session: already logged in")
)

// Role tags a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history.
type Message struct {
	Role    Role      `json:"role"`
	Tool    tools.ID  `json:"tool"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// State is one session. The zero value is not usable; use New.
//
// When Authenticated is false, Username and DisplayName are empty and
// ActiveTool is tools.Default.
type State struct {
	ID            string            `json:"id"`
	Authenticated bool              `json:"authenticated"`
	Username      string            `json:"username,omitempty"`
	DisplayName   string            `json:"display_name,omitempty"`
	ActiveTool    tools.ID          `json:"active_tool"`
	Language      advisory.Language `json:"language"`
	History       []Message         `json:"history"`
	Profile       *domain.Profile   `json:"-"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// New returns an anonymous session on the default tool.
func New(id string, now time.Time) *State {
	return &State{
		ID:         id,
		ActiveTool: tools.Default,
		Language:   advisory.DefaultLanguage,
		History:    []Message{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Login moves an anonymous session to the default tool of an authenticated
// one. Callers invoke it only after the credentials were verified.
func (s *State) Login(username, displayName string) error {
	if s.Authenticated {
		return ErrAlreadyAuthenticated
	}
	if username == "" {
		return domain.ErrMissingField
	}
	s.Authenticated = true
	s.Username = username
	s.DisplayName = displayName
	s.ActiveTool = tools.Default
	s.touch()
	return nil
}

// Select switches the active tool.
func (s *State) Select(id tools.ID) error {
	if !s.Authenticated {
		return ErrNotAuthenticated
	}
	if !id.Valid() {
		return fmt.Errorf("%w: unknown tool %q", domain.ErrValidation, id)
	}
	s.ActiveTool = id
	s.touch()
	return nil
}

// Logout returns the session to anonymous, dropping identity, history and
// the cached profile. The language choice survives.
func (s *State) Logout() error {
	if !s.Authenticated {
		return ErrNotAuthenticated
	}
	s.Authenticated = false
	s.Username = ""
	s.DisplayName = ""
	s.ActiveTool = tools.Default
	s.History = []Message{}
	s.Profile = nil
	s.touch()
	return nil
}

// SetLanguage changes the response language.
func (s *State) SetLanguage(lang advisory.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: unsupported language %q", domain.ErrValidation, lang)
	}
	s.Language = lang
	s.touch()
	return nil
}

// Record appends a message for the active tool to the history.
func (s *State) Record(role Role, content string) {
	s.History = append(s.History, Message{
		Role:    role,
		Tool:    s.ActiveTool,
		Content: content,
		At:      time.Now(),
	})
	s.touch()
}

// CacheProfile keeps the farm profile for the rest of the session.
func (s *State) CacheProfile(p domain.Profile) {
	s.Profile = &p
}

func (s *State) touch() {
	s.UpdatedAt = time.Now()
}

// clone returns a deep copy so stored sessions cannot be mutated through
// handles held by callers.
func (s *State) clone() *State {
	c := *s
	c.History = make([]Message, len(s.History))
	copy(c.History, s.History)
	if s.Profile != nil {
		p := *s.Profile
		c.Profile = &p
	}
	return &c
}
