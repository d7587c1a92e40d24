package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/geo"
	"github.com/rs/zerolog"
)

// ProfileHandler reads and saves the farm profile.
type ProfileHandler struct {
	profiles ProfileStore
	geo      geo.Locator
	log      zerolog.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profiles ProfileStore, locator geo.Locator, log zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, geo: locator, log: log}
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	p := cachedProfile(ctx, st, h.profiles, h.geo, r, h.log)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"profile": p})
}

// Put handles PUT /api/profile. A profile that cannot be persisted is still
// kept for the session and reported with a warning.
func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	var p domain.Profile
	if err := decodeJSON(r, &p); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	if p.FarmSize < 0 || math.IsNaN(p.FarmSize) || math.IsInf(p.FarmSize, 0) {
		middleware.WriteDomainError(w, fmt.Errorf("%w: farm size cannot be negative", domain.ErrValidation))
		return
	}
	p.Location = strings.TrimSpace(p.Location)
	p.Crops = strings.TrimSpace(p.Crops)

	st.CacheProfile(p)

	resp := map[string]interface{}{"profile": p}
	if err := h.profiles.Save(ctx, st.Username, p); err != nil {
		h.log.Error().Err(err).Str("username", st.Username).Msg("Failed to save profile")
		resp["warning"] = "Profile kept for this session but could not be saved."
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
