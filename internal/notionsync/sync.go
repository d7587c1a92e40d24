// Package notionsync mirrors farm ledgers into a Notion database so they
// can be browsed and shared outside the app.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/logger"
	"github.com/jomei/notionapi"
)

// LedgerSource is the read side of the ledger needed for a sync.
type LedgerSource interface {
	Usernames(ctx context.Context) ([]string, error)
	List(ctx context.Context, username string) ([]domain.Transaction, error)
}

// Stats counts what one sync did (or would do, in a dry run).
type Stats struct {
	Created  int
	Archived int
	Skipped  int
	Failed   int
}

// SyncLedgers mirrors every ledger record into the Notion database:
// records missing from Notion are created, pages whose Record ID no longer
// exists in any ledger are archived, and existing pages are left alone
// since records are immutable. Per-page failures are logged and counted.
func SyncLedgers(ctx context.Context, src LedgerSource, notion NotionService, databaseID string, dryRun bool) (Stats, error) {
	log := logger.FromContext(ctx)
	var stats Stats

	log.Info().Bool("dry_run", dryRun).Msg("Starting ledger sync to Notion")

	usernames, err := src.Usernames(ctx)
	if err != nil {
		return stats, fmt.Errorf("SyncLedgers: list users: %w", err)
	}

	type pending struct {
		username string
		tx       domain.Transaction
	}
	var records []pending
	valid := make(map[string]bool)
	for _, username := range usernames {
		txs, err := src.List(ctx, username)
		if err != nil {
			return stats, fmt.Errorf("SyncLedgers: read ledger of %s: %w", username, err)
		}
		for _, tx := range txs {
			if tx.ID == "" {
				stats.Skipped++
				continue
			}
			valid[tx.ID] = true
			records = append(records, pending{username: username, tx: tx})
		}
	}

	pages, err := queryAllPages(ctx, notion, databaseID)
	if err != nil {
		return stats, fmt.Errorf("SyncLedgers: %w", err)
	}
	log.Info().Int("records", len(records)).Int("notion_pages", len(pages)).Msg("Loaded ledger and Notion state")

	existing := make(map[string]bool)
	for _, page := range pages {
		id := recordID(page)
		if id != "" && valid[id] {
			existing[id] = true
			continue
		}

		if dryRun {
			log.Info().Str("record_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := notion.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("record_id", id).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	for _, r := range records {
		if existing[r.tx.ID] {
			stats.Skipped++
			continue
		}

		if dryRun {
			log.Info().Str("record_id", r.tx.ID).Str("username", r.username).Msg("[DRY RUN] Would create Notion page")
			stats.Created++
			continue
		}

		page, err := notion.CreatePage(ctx, databaseID, TransactionToProperties(r.username, r.tx))
		if err != nil {
			log.Warn().Err(err).Str("record_id", r.tx.ID).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().Str("record_id", r.tx.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("archived", stats.Archived).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Ledger sync completed")

	return stats, nil
}

// queryAllPages pages through the whole database.
func queryAllPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return all, nil
}
