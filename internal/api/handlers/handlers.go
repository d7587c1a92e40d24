package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/geo"
	"github.com/dvloznov/agritool/internal/jobs"
	"github.com/dvloznov/agritool/internal/session"
	"github.com/dvloznov/agritool/internal/speech"
	"github.com/dvloznov/agritool/internal/tools"
	"github.com/dvloznov/agritool/internal/weather"
	"github.com/rs/zerolog"
)

// Credentials registers and verifies users.
type Credentials interface {
	Register(ctx context.Context, username, displayName, password string) error
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// ProfileStore reads and writes farm profiles.
type ProfileStore interface {
	Load(ctx context.Context, username string) domain.Profile
	Save(ctx context.Context, username string, p domain.Profile) error
}

// LedgerStore reads and appends ledger records.
type LedgerStore interface {
	List(ctx context.Context, username string) ([]domain.Transaction, error)
	Append(ctx context.Context, username string, tx domain.Transaction) (domain.Transaction, error)
}

// CommandRouter classifies free-text commands.
type CommandRouter interface {
	Route(ctx context.Context, command string) (tools.ID, error)
}

// Advisor answers advisory prompts.
type Advisor interface {
	Ask(ctx context.Context, p advisory.Prompt) (string, error)
	Contacts(ctx context.Context, lang advisory.Language, location string) (string, error)
}

// AudioSource serves cached clips.
type AudioSource interface {
	Load(ctx context.Context, digest string) (speech.Audio, error)
}

// Services are the collaborators behind the HTTP API. Geo may be nil to
// disable location detection.
type Services struct {
	Accounts      Credentials
	Profiles      ProfileStore
	Ledger        LedgerStore
	Router        CommandRouter
	Advisor       Advisor
	Weather       weather.Provider
	Geo           geo.Locator
	Transcriber   speech.Transcriber
	Audio         AudioSource
	Publisher     jobs.Publisher
	Jobs          jobs.JobStore
	MaxAudioBytes int64
	Log           zerolog.Logger
}

// NewMux registers every API route. It fails when a tool has no handler.
func NewMux(s Services) (*http.ServeMux, error) {
	authHandler := NewAuthHandler(s.Accounts, s.Profiles, s.Geo, s.Log)
	sessionHandler := NewSessionHandler(s.Log)
	routeHandler := NewRouteHandler(s.Router, s.Log)
	profileHandler := NewProfileHandler(s.Profiles, s.Geo, s.Log)
	ledgerHandler := NewLedgerHandler(s.Ledger, s.Log)
	speechHandler := NewSpeechHandler(s.Transcriber, s.Audio, s.Jobs, s.MaxAudioBytes, s.Log)
	toolsHandler, err := NewToolsHandler(ToolDeps{
		Advisor:   s.Advisor,
		Weather:   s.Weather,
		Geo:       s.Geo,
		Ledger:    s.Ledger,
		Publisher: s.Publisher,
	}, s.Log)
	if err != nil {
		return nil, fmt.Errorf("NewMux: %w", err)
	}

	auth := func(f http.HandlerFunc) http.Handler { return middleware.RequireAuth(f) }
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/api/signup", post(authHandler.Signup))
	mux.HandleFunc("/api/login", post(authHandler.Login))
	mux.HandleFunc("/api/logout", post(authHandler.Logout))

	mux.HandleFunc("/api/session", get(sessionHandler.Get))
	mux.Handle("/api/session/tool", auth(post(sessionHandler.SelectTool)))
	mux.HandleFunc("/api/session/language", post(sessionHandler.SetLanguage))

	mux.Handle("/api/route", auth(post(routeHandler.Route)))

	mux.Handle("/api/profile", auth(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			profileHandler.Get(w, r)
		case http.MethodPut:
			profileHandler.Put(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))

	mux.Handle("/api/ledger", auth(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ledgerHandler.List(w, r)
		case http.MethodPost:
			ledgerHandler.Append(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))

	// Tool routes: /api/tools/{tool}
	mux.Handle("/api/tools/", auth(post(func(w http.ResponseWriter, r *http.Request) {
		toolsHandler.Run(w, r, strings.TrimPrefix(r.URL.Path, "/api/tools/"))
	})))

	mux.Handle("/api/speech/transcribe", auth(post(speechHandler.Transcribe)))
	mux.Handle("/api/speech/jobs", auth(get(speechHandler.ListJobs)))
	mux.Handle("/api/speech/jobs/", auth(get(func(w http.ResponseWriter, r *http.Request) {
		speechHandler.GetJob(w, r, strings.TrimPrefix(r.URL.Path, "/api/speech/jobs/"))
	})))
	mux.Handle("/api/speech/audio/", auth(get(func(w http.ResponseWriter, r *http.Request) {
		speechHandler.GetAudio(w, r, strings.TrimPrefix(r.URL.Path, "/api/speech/audio/"))
	})))

	return mux, nil
}

func post(f http.HandlerFunc) http.HandlerFunc { return only(http.MethodPost, f) }

func get(f http.HandlerFunc) http.HandlerFunc { return only(http.MethodGet, f) }

func only(method string, f http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		f(w, r)
	}
}

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", domain.ErrValidation)
		}
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	return nil
}

// fail logs err at a level matching its kind and writes the JSON error.
func fail(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	event := log.Warn()
	if domain.HTTPStatus(err) >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Msg(msg)
	middleware.WriteDomainError(w, err)
}

// clientIP returns the caller's address, honouring the first
// X-Forwarded-For hop set by a fronting proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// detectLocation looks up the caller's city. Lookup failures yield "".
func detectLocation(ctx context.Context, locator geo.Locator, r *http.Request, log zerolog.Logger) string {
	if locator == nil {
		return ""
	}
	city, err := locator.City(ctx, clientIP(r))
	if err != nil {
		log.Debug().Err(err).Msg("Location detection failed")
		return ""
	}
	return city
}

// cachedProfile returns the session's profile, loading it and filling a
// blank location from geolocation on first use.
func cachedProfile(ctx context.Context, st *session.State, store ProfileStore, locator geo.Locator, r *http.Request, log zerolog.Logger) domain.Profile {
	if st.Profile != nil {
		return *st.Profile
	}
	p := store.Load(ctx, st.Username)
	if strings.TrimSpace(p.Location) == "" {
		p.Location = detectLocation(ctx, locator, r, log)
	}
	st.CacheProfile(p)
	return p
}
