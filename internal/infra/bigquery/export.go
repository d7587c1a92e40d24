package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/agritool/internal/domain"
	"github.com/rs/zerolog"
)

// LedgerSource is the read side of the ledger needed for an export.
type LedgerSource interface {
	Usernames(ctx context.Context) ([]string, error)
	List(ctx context.Context, username string) ([]domain.Transaction, error)
}

// RowInserter stores export rows.
// This interface enables testing the export loop without BigQuery.
type RowInserter interface {
	Insert(ctx context.Context, rows []*LedgerRow) error
}

// ExportStats summarizes one export run.
type ExportStats struct {
	Users   int
	Rows    int
	Skipped int
}

// ExportLedgers copies every user's ledger to dst. When only is non-empty,
// just that user is exported. Records without an ID predate ID assignment
// and are skipped, since they cannot be deduplicated.
func ExportLedgers(ctx context.Context, src LedgerSource, dst RowInserter, only string, log zerolog.Logger) (ExportStats, error) {
	var stats ExportStats

	usernames := []string{only}
	if only == "" {
		var err error
		usernames, err = src.Usernames(ctx)
		if err != nil {
			return stats, fmt.Errorf("ExportLedgers: list users: %w", err)
		}
	}

	now := time.Now().UTC()
	for _, username := range usernames {
		records, err := src.List(ctx, username)
		if err != nil {
			return stats, fmt.Errorf("ExportLedgers: read ledger of %s: %w", username, err)
		}

		rows := make([]*LedgerRow, 0, len(records))
		for _, tx := range records {
			if tx.ID == "" {
				stats.Skipped++
				continue
			}
			rows = append(rows, ToLedgerRow(username, tx, now))
		}

		if err := dst.Insert(ctx, rows); err != nil {
			return stats, fmt.Errorf("ExportLedgers: insert rows of %s: %w", username, err)
		}

		stats.Users++
		stats.Rows += len(rows)
		log.Info().Str("username", username).Int("rows", len(rows)).Msg("exported ledger")
	}
	return stats, nil
}

var _ RowInserter = (*LedgerExporter)(nil)
