package bigquery

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ledgers map[string][]domain.Transaction
	order   []string
}

func (f *fakeSource) Usernames(ctx context.Context) ([]string, error) {
	return f.order, nil
}

func (f *fakeSource) List(ctx context.Context, username string) ([]domain.Transaction, error) {
	return f.ledgers[username], nil
}

type fakeInserter struct {
	rows []*LedgerRow
	err  error
}

func (f *fakeInserter) Insert(ctx context.Context, rows []*LedgerRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func sampleSource() *fakeSource {
	return &fakeSource{
		order: []string{"ravi", "sita"},
		ledgers: map[string][]domain.Transaction{
			"ravi": {
				{ID: "r1", Date: civil.Date{Year: 2024, Month: 6, Day: 1}, Type: domain.Expense, Category: "Seeds", Amount: decimal.NewFromInt(500)},
				{ID: "r2", Date: civil.Date{Year: 2024, Month: 6, Day: 5}, Type: domain.Income, Category: "Crop Sale", Amount: decimal.NewFromInt(2000), Notes: "paddy"},
			},
			"sita": {
				{Date: civil.Date{Year: 2024, Month: 5, Day: 2}, Type: domain.Expense, Category: "Labor", Amount: decimal.NewFromInt(300)},
				{ID: "s2", Date: civil.Date{Year: 2024, Month: 5, Day: 3}, Type: domain.Expense, Category: "Labor", Amount: decimal.RequireFromString("150.25")},
			},
		},
	}
}

func TestToLedgerRow(t *testing.T) {
	at := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	tx := domain.Transaction{
		ID:       "r1",
		Date:     civil.Date{Year: 2024, Month: 6, Day: 1},
		Type:     domain.Expense,
		Category: "Seeds",
		Amount:   decimal.RequireFromString("500.50"),
	}

	row := ToLedgerRow("ravi", tx, at)
	assert.Equal(t, "r1", row.RecordID)
	assert.Equal(t, "ravi", row.Username)
	assert.Equal(t, "Expense", row.Type)
	assert.Equal(t, 0, row.Amount.Cmp(big.NewRat(1001, 2)))
	assert.False(t, row.Notes.Valid)
	assert.Equal(t, at, row.ExportedTS)
}

func TestLedgerRowSchema(t *testing.T) {
	schema, err := bigquery.InferSchema(LedgerRow{})
	require.NoError(t, err)

	types := map[string]bigquery.FieldType{}
	for _, f := range schema {
		types[f.Name] = f.Type
	}
	assert.Equal(t, bigquery.DateFieldType, types["transaction_date"])
	assert.Equal(t, bigquery.NumericFieldType, types["amount"])
	assert.Equal(t, bigquery.TimestampFieldType, types["exported_ts"])
	assert.Equal(t, bigquery.StringFieldType, types["notes"])
}

func TestExportLedgers_AllUsers(t *testing.T) {
	dst := &fakeInserter{}
	stats, err := ExportLedgers(context.Background(), sampleSource(), dst, "", zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, ExportStats{Users: 2, Rows: 3, Skipped: 1}, stats)
	require.Len(t, dst.rows, 3)
	assert.Equal(t, "s2", dst.rows[2].RecordID)
	assert.Equal(t, "sita", dst.rows[2].Username)
}

func TestExportLedgers_SingleUser(t *testing.T) {
	dst := &fakeInserter{}
	stats, err := ExportLedgers(context.Background(), sampleSource(), dst, "ravi", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 2, stats.Rows)
	assert.True(t, dst.rows[1].Notes.Valid)
}

func TestExportLedgers_InsertFailure(t *testing.T) {
	dst := &fakeInserter{err: errors.New("quota exceeded")}
	_, err := ExportLedgers(context.Background(), sampleSource(), dst, "", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ravi")
}
