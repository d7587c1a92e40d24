package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/geo"
	"github.com/dvloznov/agritool/internal/session"
	"github.com/rs/zerolog"
)

// AuthHandler handles signup, login and logout.
type AuthHandler struct {
	accounts Credentials
	profiles ProfileStore
	geo      geo.Locator
	log      zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accounts Credentials, profiles ProfileStore, locator geo.Locator, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		profiles: profiles,
		geo:      locator,
		log:      log,
	}
}

// Signup handles POST /api/signup. The session stays anonymous; the user
// logs in separately.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	if err := h.accounts.Register(r.Context(), req.Username, req.DisplayName, req.Password); err != nil {
		fail(w, h.log, err, "Signup failed")
		return
	}

	h.log.Info().Str("username", req.Username).Msg("User registered")
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"status":   "registered",
		"username": req.Username,
	})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	if st.Authenticated {
		middleware.WriteError(w, http.StatusConflict, "Already logged in")
		return
	}

	displayName, err := h.accounts.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		fail(w, h.log, err, "Login failed")
		return
	}

	if err := st.Login(req.Username, displayName); err != nil {
		if errors.Is(err, session.ErrAlreadyAuthenticated) {
			middleware.WriteError(w, http.StatusConflict, "Already logged in")
			return
		}
		fail(w, h.log, err, "Login failed")
		return
	}
	cachedProfile(ctx, st, h.profiles, h.geo, r, h.log)

	h.log.Info().Str("username", st.Username).Msg("User logged in")
	middleware.WriteJSON(w, http.StatusOK, newSessionView(st))
}

// Logout handles POST /api/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	st := middleware.SessionFromContext(r.Context())
	username := st.Username

	if err := st.Logout(); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	h.log.Info().Str("username", username).Msg("User logged out")
	middleware.WriteJSON(w, http.StatusOK, newSessionView(st))
}
