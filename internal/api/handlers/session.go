package handlers

import (
	"net/http"

	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/session"
	"github.com/dvloznov/agritool/internal/tools"
	"github.com/rs/zerolog"
)

type toolView struct {
	ID    tools.ID `json:"id"`
	Label string   `json:"label"`
}

// sessionView is the client-facing snapshot of a session.
type sessionView struct {
	Authenticated bool                `json:"authenticated"`
	Username      string              `json:"username,omitempty"`
	DisplayName   string              `json:"display_name,omitempty"`
	ActiveTool    tools.ID            `json:"active_tool"`
	ToolLabel     string              `json:"tool_label"`
	Language      advisory.Language   `json:"language"`
	HistoryLength int                 `json:"history_length"`
	Tools         []toolView          `json:"tools"`
	Languages     []advisory.Language `json:"languages"`
}

func newSessionView(st *session.State) sessionView {
	ids := tools.All()
	menu := make([]toolView, len(ids))
	for i, id := range ids {
		menu[i] = toolView{ID: id, Label: id.Label()}
	}
	return sessionView{
		Authenticated: st.Authenticated,
		Username:      st.Username,
		DisplayName:   st.DisplayName,
		ActiveTool:    st.ActiveTool,
		ToolLabel:     st.ActiveTool.Label(),
		Language:      st.Language,
		HistoryLength: len(st.History),
		Tools:         menu,
		Languages:     advisory.Languages(),
	}
}

// SessionHandler exposes navigation state.
type SessionHandler struct {
	log zerolog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(log zerolog.Logger) *SessionHandler {
	return &SessionHandler{log: log}
}

// Get handles GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, newSessionView(middleware.SessionFromContext(r.Context())))
}

// SelectTool handles POST /api/session/tool
func (h *SessionHandler) SelectTool(w http.ResponseWriter, r *http.Request) {
	st := middleware.SessionFromContext(r.Context())

	var req struct {
		Tool string `json:"tool"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	id, err := tools.Parse(req.Tool)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	if err := st.Select(id); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, newSessionView(st))
}

// SetLanguage handles POST /api/session/language
func (h *SessionHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	st := middleware.SessionFromContext(r.Context())

	var req struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	lang, err := advisory.ParseLanguage(req.Language)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	if err := st.SetLanguage(lang); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, newSessionView(st))
}
