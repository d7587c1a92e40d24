package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/session"
	"github.com/dvloznov/agritool/internal/tools"
	"github.com/rs/zerolog"
)

// RouteHandler switches tools from free-text or transcribed commands.
type RouteHandler struct {
	router CommandRouter
	log    zerolog.Logger
}

// NewRouteHandler creates a new route handler.
func NewRouteHandler(router CommandRouter, log zerolog.Logger) *RouteHandler {
	return &RouteHandler{router: router, log: log}
}

type routeResponse struct {
	Tool    tools.ID `json:"tool"`
	Label   string   `json:"label"`
	Routed  bool     `json:"routed"`
	Warning string   `json:"warning,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Route handles POST /api/route. Routing never fails the request: a
// command that cannot be classified lands on the default tool, and a
// model failure is reported alongside that fallback.
func (h *RouteHandler) Route(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	var req struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	command := strings.TrimSpace(req.Command)
	if command == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Command is required")
		return
	}

	id, routeErr := h.router.Route(ctx, command)
	if err := st.Select(id); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	st.Record(session.RoleUser, command)

	resp := routeResponse{Tool: id, Label: id.Label(), Routed: routeErr == nil}
	switch {
	case routeErr == nil:
	case errors.Is(routeErr, domain.ErrAmbiguousRouting):
		resp.Warning = "Could not tell which tool you meant, opened " + id.Label() + "."
	default:
		h.log.Warn().Err(routeErr).Str("username", st.Username).Msg("Command routing failed")
		resp.Error = domain.UserMessage(routeErr)
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
