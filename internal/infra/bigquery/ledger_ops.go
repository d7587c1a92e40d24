package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	// DefaultDataset is the dataset ledger rows are exported to.
	DefaultDataset = "agritool"
	// DefaultTable is the ledger table name.
	DefaultTable = "ledger"
)

// LedgerExporter writes ledger rows to BigQuery. It holds a shared client
// to avoid creating a new connection for each operation.
type LedgerExporter struct {
	client  *bigquery.Client
	dataset string
	table   string
	schema  bigquery.Schema
}

// NewLedgerExporter creates an exporter for projectID.dataset.table.
func NewLedgerExporter(ctx context.Context, projectID, dataset, table string) (*LedgerExporter, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	if table == "" {
		table = DefaultTable
	}

	schema, err := bigquery.InferSchema(LedgerRow{})
	if err != nil {
		return nil, fmt.Errorf("NewLedgerExporter: infer schema: %w", err)
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerExporter: creating client: %w", err)
	}
	return &LedgerExporter{
		client:  client,
		dataset: dataset,
		table:   table,
		schema:  schema,
	}, nil
}

// Close closes the BigQuery client connection.
func (e *LedgerExporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// EnsureTable creates the dataset and table when they do not exist yet.
func (e *LedgerExporter) EnsureTable(ctx context.Context) error {
	ds := e.client.Dataset(e.dataset)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("EnsureTable: dataset metadata: %w", err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: "US"}); err != nil {
			return fmt.Errorf("EnsureTable: create dataset: %w", err)
		}
	}

	t := ds.Table(e.table)
	if _, err := t.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("EnsureTable: table metadata: %w", err)
		}
		meta := &bigquery.TableMetadata{
			Schema: e.schema,
			TimePartitioning: &bigquery.TimePartitioning{
				Type:  bigquery.MonthPartitioningType,
				Field: "transaction_date",
			},
		}
		if err := t.Create(ctx, meta); err != nil {
			return fmt.Errorf("EnsureTable: create table: %w", err)
		}
	}
	return nil
}

// Insert streams rows into the ledger table. The record ID is used as the
// insert ID, so re-exporting a ledger does not duplicate rows within
// BigQuery's deduplication window.
func (e *LedgerExporter) Insert(ctx context.Context, rows []*LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	savers := make([]*bigquery.StructSaver, len(rows))
	for i, r := range rows {
		savers[i] = &bigquery.StructSaver{
			Struct:   r,
			Schema:   e.schema,
			InsertID: r.RecordID,
		}
	}

	inserter := e.client.Dataset(e.dataset).Table(e.table).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("Insert: inserting rows: %w", err)
	}
	return nil
}

// ExpenseByCategory sums exported expenses of username per category.
func (e *LedgerExporter) ExpenseByCategory(ctx context.Context, username string) ([]*CategoryTotal, error) {
	q := e.client.Query(fmt.Sprintf(`
		SELECT
			category,
			SUM(amount) AS total
		FROM (
			SELECT record_id, ANY_VALUE(category) AS category, ANY_VALUE(amount) AS amount
			FROM `+"`%s.%s`"+`
			WHERE username = @username AND type = 'Expense'
			GROUP BY record_id
		)
		GROUP BY category
		ORDER BY category
	`, e.dataset, e.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "username", Value: username},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExpenseByCategory: query read: %w", err)
	}

	var totals []*CategoryTotal
	for {
		var r CategoryTotal
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ExpenseByCategory: iter next: %w", err)
		}
		totals = append(totals, &r)
	}
	return totals, nil
}
