package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/agritool/internal/domain"
)

// LedgerRow is one exported transaction record.
type LedgerRow struct {
	RecordID string `bigquery:"record_id"` // REQUIRED
	Username string `bigquery:"username"`  // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Type            string     `bigquery:"type"`             // Expense | Income
	Category        string     `bigquery:"category"`

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC

	Notes bigquery.NullString `bigquery:"notes"` // NULLABLE

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// ToLedgerRow converts a ledger record of username into an export row.
func ToLedgerRow(username string, tx domain.Transaction, exportedAt time.Time) *LedgerRow {
	return &LedgerRow{
		RecordID:        tx.ID,
		Username:        username,
		TransactionDate: tx.Date,
		Type:            string(tx.Type),
		Category:        tx.Category,
		Amount:          tx.Amount.Rat(),
		Notes:           bigquery.NullString{StringVal: tx.Notes, Valid: tx.Notes != ""},
		ExportedTS:      exportedAt,
	}
}

// CategoryTotal is the summed expense of one category.
type CategoryTotal struct {
	Category string   `bigquery:"category"`
	Total    *big.Rat `bigquery:"total"`
}
