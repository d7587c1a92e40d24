package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/ai"
	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/geo"
	"github.com/dvloznov/agritool/internal/jobs"
	"github.com/dvloznov/agritool/internal/session"
	"github.com/dvloznov/agritool/internal/tools"
	"github.com/dvloznov/agritool/internal/weather"
	"github.com/rs/zerolog"
)

// ToolDeps are the collaborators the tools draw on. Geo and Publisher may
// be nil.
type ToolDeps struct {
	Advisor   Advisor
	Weather   weather.Provider
	Geo       geo.Locator
	Ledger    LedgerStore
	Publisher jobs.Publisher
}

// toolResult is what one tool run produced.
type toolResult struct {
	Text       string      `json:"text"`
	Data       interface{} `json:"data,omitempty"`
	AudioJobID string      `json:"audio_job_id,omitempty"`
	Warning    string      `json:"warning,omitempty"`

	// input is the farmer's side of the exchange for the history.
	input string
}

type toolFunc func(ctx context.Context, r *http.Request, st *session.State) (toolResult, error)

// ToolsHandler runs tools.
type ToolsHandler struct {
	deps  ToolDeps
	funcs map[tools.ID]toolFunc
	log   zerolog.Logger
	now   func() time.Time
}

// NewToolsHandler creates a tools handler with a handler for every tool.
func NewToolsHandler(deps ToolDeps, log zerolog.Logger) (*ToolsHandler, error) {
	h := &ToolsHandler{deps: deps, log: log, now: time.Now}
	h.funcs = map[tools.ID]toolFunc{
		tools.Chatbot:          h.chatbot,
		tools.DiseaseDetection: h.diseaseDetection,
		tools.Weather:          h.weather,
		tools.SoilAdvice:       h.soilAdvice,
		tools.MarketPrices:     h.marketPrices,
		tools.ExpenseTracker:   h.expenseTracker,
		tools.CropCalendar:     h.cropCalendar,
		tools.WaterCalculator:  h.waterCalculator,
		tools.Schemes:          h.schemes,
		tools.Contacts:         h.contacts,
	}
	if err := checkTotal(h.funcs); err != nil {
		return nil, err
	}
	return h, nil
}

// checkTotal verifies every tool has a handler.
func checkTotal(funcs map[tools.ID]toolFunc) error {
	for _, id := range tools.All() {
		if funcs[id] == nil {
			return fmt.Errorf("no handler for tool %q", id)
		}
	}
	return nil
}

// Run handles POST /api/tools/{tool}. Running a tool also makes it the
// active one. With ?speak=true the answer is queued for speech synthesis.
func (h *ToolsHandler) Run(w http.ResponseWriter, r *http.Request, name string) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	id, err := tools.Parse(name)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Unknown tool")
		return
	}
	if err := st.Select(id); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	res, err := h.funcs[id](ctx, r, st)
	if err != nil {
		fail(w, h.log.With().Str("tool", string(id)).Logger(), err, "Tool run failed")
		return
	}

	st.Record(session.RoleUser, res.input)
	st.Record(session.RoleAssistant, res.Text)

	if speak, _ := strconv.ParseBool(r.URL.Query().Get("speak")); speak && res.Text != "" {
		jobID, err := h.enqueueSpeech(ctx, st, res.Text)
		if err != nil {
			h.log.Warn().Err(err).Str("tool", string(id)).Msg("Failed to queue speech synthesis")
			res.Warning = "Audio is not available for this answer."
		}
		res.AudioJobID = jobID
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

func (h *ToolsHandler) enqueueSpeech(ctx context.Context, st *session.State, text string) (string, error) {
	if h.deps.Publisher == nil {
		return "", fmt.Errorf("speech synthesis is disabled")
	}
	job := &jobs.SynthesizeSpeechJob{
		Username: st.Username,
		Text:     text,
		Language: string(st.Language),
	}
	if err := h.deps.Publisher.PublishSynthesizeSpeech(ctx, job); err != nil {
		return "", err
	}
	return job.JobID, nil
}

// location picks the first non-blank of the requested location, the
// profile location and the detected one.
func (h *ToolsHandler) location(ctx context.Context, r *http.Request, st *session.State, requested string) string {
	if loc := strings.TrimSpace(requested); loc != "" {
		return loc
	}
	if st.Profile != nil && strings.TrimSpace(st.Profile.Location) != "" {
		return st.Profile.Location
	}
	return detectLocation(ctx, h.deps.Geo, r, h.log)
}

func (h *ToolsHandler) ask(ctx context.Context, p advisory.Prompt, input string) (toolResult, error) {
	text, err := h.deps.Advisor.Ask(ctx, p)
	if err != nil {
		return toolResult{}, err
	}
	return toolResult{Text: text, input: input}, nil
}

func (h *ToolsHandler) chatbot(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	var req struct {
		Question string `json:"question"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return toolResult{}, err
	}
	p, err := advisory.Chat(st.Language, req.Question)
	if err != nil {
		return toolResult{}, err
	}
	return h.ask(ctx, p, req.Question)
}

func (h *ToolsHandler) diseaseDetection(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	var req struct {
		Image    []byte `json:"image"` // base64
		MIMEType string `json:"mime_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return toolResult{}, err
	}
	p, err := advisory.Diagnose(st.Language, ai.Image{MIMEType: req.MIMEType, Data: req.Image})
	if err != nil {
		return toolResult{}, err
	}
	return h.ask(ctx, p, "[crop photo]")
}

func (h *ToolsHandler) weather(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	var req struct {
		Location string `json:"location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return toolResult{}, err
	}
	loc := h.location(ctx, r, st, req.Location)
	if loc == "" {
		return toolResult{}, fmt.Errorf("%w: location is required", domain.ErrValidation)
	}

	report, err := h.deps.Weather.Forecast(ctx, loc)
	if err != nil {
		return toolResult{}, err
	}
	res, err := h.ask(ctx, advisory.WeatherAdvisory(st.Language, report), "Weather for "+loc)
	if err != nil {
		return toolResult{}, err
	}
	res.Data = report
	return res, nil
}

func (h *ToolsHandler) soilAdvice(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	var in advisory.SoilInput
	if err := decodeJSON(r, &in); err != nil {
		return toolResult{}, err
	}
	p, err := advisory.Soil(st.Language, in)
	if err != nil {
		return toolResult{}, err
	}
	return h.ask(ctx, p, p.Input)
}

func (h *ToolsHandler) marketPrices(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	var req struct {
		Crop     string `json:"crop"`
		Location string `json:"location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return toolResult{}, err
	}

	if strings.TrimSpace(req.Crop) == "" {
		prices := advisory.MarketPrices()
		lines := make([]string, len(prices))
		for i, p := range prices {
			lines[i] = fmt.Sprintf("%s: ₹%d per quintal", p.Crop, p.PerQuintal)
		}
		return toolResult{Text: strings.Join(lines, "\n"), Data: prices, input: "Market prices"}, nil
	}

	p, err := advisory.Market(st.Language, req.Crop, h.location(ctx, r, st, req.Location))
	if err != nil {
		return toolResult{}, err
	}
	res, err := h.ask(ctx, p, "Market price of "+req.Crop)
	if err != nil {
		return toolResult{}, err
	}
	res.Data, _ = advisory.LookupPrice(req.Crop)
	return res, nil
}

func (h *ToolsHandler) expenseTracker(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	records, err := h.deps.Ledger.List(ctx, st.Username)
	if err != nil {
		return toolResult{}, err
	}
	view := newLedgerView(records)
	text := fmt.Sprintf("Income ₹%s, expenses ₹%s, net ₹%s across %d records.",
		view.Summary.TotalIncome.StringFixed(2),
		view.Summary.TotalExpense.StringFixed(2),
		view.Summary.Net.StringFixed(2),
		view.Summary.Count)
	return toolResult{Text: text, Data: view, input: "Ledger summary"}, nil
}

func (h *ToolsHandler) cropCalendar(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	var req struct {
		Location string `json:"location"`
		Month    string `json:"month"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return toolResult{}, err
	}
	month, err := parseMonth(req.Month, h.now())
	if err != nil {
		return toolResult{}, err
	}
	p, err := advisory.CropCalendar(st.Language, h.location(ctx, r, st, req.Location), month)
	if err != nil {
		return toolResult{}, err
	}
	return h.ask(ctx, p, "Crop calendar for "+month.String())
}

func (h *ToolsHandler) waterCalculator(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	var in advisory.WaterInput
	if err := decodeJSON(r, &in); err != nil {
		return toolResult{}, err
	}
	p, err := advisory.Water(st.Language, in)
	if err != nil {
		return toolResult{}, err
	}
	return h.ask(ctx, p, p.Input)
}

func (h *ToolsHandler) schemes(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	var req struct {
		Keyword string `json:"keyword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return toolResult{}, err
	}
	p, err := advisory.Schemes(st.Language, req.Keyword)
	if err != nil {
		return toolResult{}, err
	}
	return h.ask(ctx, p, req.Keyword)
}

func (h *ToolsHandler) contacts(ctx context.Context, r *http.Request, st *session.State) (toolResult, error) {
	var req struct {
		Location string `json:"location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return toolResult{}, err
	}
	loc := h.location(ctx, r, st, req.Location)
	text, err := h.deps.Advisor.Contacts(ctx, st.Language, loc)
	if err != nil {
		return toolResult{}, err
	}
	return toolResult{Text: text, input: "Contacts in " + loc}, nil
}

// parseMonth accepts a month number or English name. Blank means the
// current month.
func parseMonth(s string, now time.Time) (time.Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Month(), nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n), nil
		}
	} else {
		for m := time.January; m <= time.December; m++ {
			if strings.EqualFold(s, m.String()) || strings.EqualFold(s, m.String()[:3]) {
				return m, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown month %q", domain.ErrValidation, s)
}
