package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/dvloznov/agritool/internal/logger"
	"github.com/dvloznov/agritool/internal/session"
)

// SessionStore is the session persistence the middleware needs.
type SessionStore interface {
	Create(ctx context.Context) (*session.State, error)
	Get(ctx context.Context, id string) (*session.State, error)
	Save(ctx context.Context, st *session.State) error
}

// CookieOptions configures the session cookie.
type CookieOptions struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

const sessionKey contextKey = "session"

// Session loads the session named by the cookie at the start of a request,
// starting a fresh anonymous one when the cookie is missing or stale. The
// session is saved right before the response header goes out, so a client
// never observes a response ahead of the state change behind it.
func Session(store SessionStore, opts CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.FromContext(ctx)

			var st *session.State
			if c, err := r.Cookie(opts.Name); err == nil {
				st, _ = store.Get(ctx, c.Value)
			}
			if st == nil {
				created, err := store.Create(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Failed to create session")
					WriteError(w, http.StatusInternalServerError, "Could not start a session")
					return
				}
				st = created
			}

			cookie := &http.Cookie{
				Name:     opts.Name,
				Value:    st.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			}
			if opts.TTL > 0 {
				cookie.MaxAge = int(opts.TTL.Seconds())
			}
			http.SetCookie(w, cookie)

			sw := &sessionWriter{ResponseWriter: w, save: func() {
				if err := store.Save(ctx, st); err != nil {
					log.Error().Err(err).Str("session_id", st.ID).Msg("Failed to save session")
				}
			}}
			next.ServeHTTP(sw, r.WithContext(context.WithValue(ctx, sessionKey, st)))
			sw.flush()
		})
	}
}

// sessionWriter runs save once, before the first header or body byte.
type sessionWriter struct {
	http.ResponseWriter
	save  func()
	saved bool
}

func (sw *sessionWriter) flush() {
	if !sw.saved {
		sw.saved = true
		sw.save()
	}
}

func (sw *sessionWriter) WriteHeader(code int) {
	sw.flush()
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	sw.flush()
	return sw.ResponseWriter.Write(b)
}

// SessionFromContext returns the session loaded by Session.
func SessionFromContext(ctx context.Context) *session.State {
	st, _ := ctx.Value(sessionKey).(*session.State)
	return st
}

// RequireAuth rejects requests whose session is not logged in.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := SessionFromContext(r.Context())
		if st == nil || !st.Authenticated {
			WriteDomainError(w, session.ErrNotAuthenticated)
			return
		}

		log := logger.ForUser(logger.FromContext(r.Context()), st.Username)
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), log)))
	})
}
