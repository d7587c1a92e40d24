package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerHandler handles the expense tracker endpoints.
type LedgerHandler struct {
	ledger LedgerStore
	log    zerolog.Logger
	now    func() time.Time
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(l LedgerStore, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, log: log, now: time.Now}
}

// ledgerView is a ledger snapshot with its aggregates.
type ledgerView struct {
	Records    []domain.Transaction `json:"records"`
	Summary    ledger.Summary       `json:"summary"`
	Categories map[string][]string  `json:"categories"`
}

func newLedgerView(records []domain.Transaction) ledgerView {
	if records == nil {
		records = []domain.Transaction{}
	}
	return ledgerView{
		Records: records,
		Summary: ledger.Summarize(records),
		Categories: map[string][]string{
			string(domain.Expense): domain.CategoriesFor(domain.Expense),
			string(domain.Income):  domain.CategoriesFor(domain.Income),
		},
	}
}

// List handles GET /api/ledger
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	records, err := h.ledger.List(ctx, st.Username)
	if err != nil {
		fail(w, h.log, err, "Failed to list ledger")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, newLedgerView(records))
}

// Append handles POST /api/ledger. A blank date means today.
func (h *LedgerHandler) Append(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	var req struct {
		Date     string          `json:"date"`
		Type     string          `json:"type"`
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
		Notes    string          `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	date := civil.DateOf(h.now())
	if s := strings.TrimSpace(req.Date); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteDomainError(w, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation))
			return
		}
		date = d
	}

	tx, err := h.ledger.Append(ctx, st.Username, domain.Transaction{
		Date:     date,
		Type:     domain.TransactionType(req.Type),
		Category: req.Category,
		Amount:   req.Amount,
		Notes:    req.Notes,
	})
	if err != nil {
		fail(w, h.log, err, "Failed to append ledger record")
		return
	}

	records, err := h.ledger.List(ctx, st.Username)
	if err != nil {
		fail(w, h.log, err, "Failed to list ledger")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"record":  tx,
		"summary": ledger.Summarize(records),
	})
}
