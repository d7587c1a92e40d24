package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/agritool/internal/accounts"
	"github.com/dvloznov/agritool/internal/ai"
	"github.com/dvloznov/agritool/internal/blob"
	"github.com/dvloznov/agritool/internal/config"
	"github.com/dvloznov/agritool/internal/domain"
	infraBQ "github.com/dvloznov/agritool/internal/infra/bigquery"
	"github.com/dvloznov/agritool/internal/ledger"
	"github.com/dvloznov/agritool/internal/logger"
	"github.com/dvloznov/agritool/internal/notionsync"
	"github.com/dvloznov/agritool/internal/tools"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
	blobs      blob.Store
	closeBlobs func() error
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.NewWithWriter(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		Level(logger.ParseLevel(cfg.Logging.Level))

	blobs, closeBlobs, err := blob.Open(cmd.Context(), cfg.Storage.Backend, cfg.Storage.Dir, cfg.Storage.Bucket, cfg.Storage.Prefix)
	if err != nil {
		return fmt.Errorf("open record storage: %w", err)
	}
	a.blobs = blobs
	a.closeBlobs = closeBlobs
	cmd.SetContext(logger.WithContext(cmd.Context(), a.log))
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.closeBlobs != nil {
		return a.closeBlobs()
	}
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:                "agritool",
		Short:              "agritool - admin tasks for the AgriTool farmer assistant",
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "Path to the YAML config file")

	root.AddCommand(
		newRegisterCmd(a),
		newUsersCmd(a),
		newLedgerCmd(a),
		newRouteCmd(a),
		newExportCmd(a),
		newSyncCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var username, displayName, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := accounts.NewStore(a.blobs).Register(cmd.Context(), username, displayName, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Login name")
	cmd.Flags().StringVar(&displayName, "display-name", "", "Name shown in the app")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}

func newUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered accounts and their ledger sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := accounts.NewStore(a.blobs)
			l := ledger.New(a.blobs)

			names, err := store.Usernames(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tDISPLAY NAME\tRECORDS")
			for _, name := range names {
				acct, err := store.Get(cmd.Context(), name)
				if err != nil {
					return err
				}
				records, err := l.List(cmd.Context(), name)
				if err != nil {
					a.log.Warn().Err(err).Str("username", name).Msg("Failed to read ledger")
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\n", acct.Username, acct.DisplayName, len(records))
			}
			return tw.Flush()
		},
	}
}

func newLedgerCmd(a *app) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and append to a user's ledger",
	}
	cmd.PersistentFlags().StringVar(&username, "user", "", "Ledger owner (required)")
	_ = cmd.MarkPersistentFlagRequired("user")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print every record",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := ledger.New(a.blobs).List(cmd.Context(), username)
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	var date, txType, category, amount, notes string
	add := &cobra.Command{
		Use:   "add",
		Short: "Append one record",
		RunE: func(cmd *cobra.Command, args []string) error {
			tx := domain.Transaction{
				Date:     civil.DateOf(time.Now()),
				Type:     domain.TransactionType(txType),
				Category: category,
				Notes:    notes,
			}
			if date != "" {
				d, err := civil.ParseDate(date)
				if err != nil {
					return fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
				}
				tx.Date = d
			}
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("%w: amount %q is not a number", domain.ErrValidation, amount)
			}
			tx.Amount = amt

			stored, err := ledger.New(a.blobs).Append(cmd.Context(), username, tx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", stored.ID)
			return nil
		},
	}
	add.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD (default today)")
	add.Flags().StringVar(&txType, "type", string(domain.Expense), "Expense or Income")
	add.Flags().StringVar(&category, "category", "", "Category for the type")
	add.Flags().StringVar(&amount, "amount", "", "Amount in rupees")
	add.Flags().StringVar(&notes, "notes", "", "Free-text notes")

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print income, expense and net totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := ledger.New(a.blobs).List(cmd.Context(), username)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), ledger.Summarize(records))
			return nil
		},
	}

	cmd.AddCommand(list, add, summary)
	return cmd
}

func printRecords(w io.Writer, records []domain.Transaction) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tCATEGORY\tAMOUNT\tNOTES")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Date, r.Type, r.Category, r.Amount.StringFixed(2), r.Notes)
	}
	tw.Flush()
}

func printSummary(w io.Writer, s ledger.Summary) {
	fmt.Fprintf(w, "Records:       %d\n", s.Count)
	fmt.Fprintf(w, "Total income:  %s\n", s.TotalIncome.StringFixed(2))
	fmt.Fprintf(w, "Total expense: %s\n", s.TotalExpense.StringFixed(2))
	fmt.Fprintf(w, "Net:           %s\n", s.Net.StringFixed(2))
	for _, c := range s.Categories() {
		fmt.Fprintf(w, "  %-12s %s\n", c, s.ExpenseByCategory[c].StringFixed(2))
	}
}

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route <command>",
		Short: "Show which tool a spoken or typed command opens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Gemini.APIKey == "" {
				return fmt.Errorf("GEMINI_API_KEY is required")
			}
			client, err := ai.NewClient(cmd.Context(), a.cfg.Gemini.APIKey)
			if err != nil {
				return err
			}
			router := tools.NewRouter(ai.NewGemini(client, a.cfg.Gemini.Model, a.cfg.GetModelTimeout()), a.log)

			id, err := router.Route(cmd.Context(), strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", id, id.Label())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "fell back to the default tool: %v\n", err)
			}
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export ledgers to external systems",
	}

	var only string
	var report bool
	bq := &cobra.Command{
		Use:   "bigquery",
		Short: "Stream ledger records into BigQuery",
		RunE: func(cmd *cobra.Command, args []string) error {
			bqCfg := a.cfg.BigQuery
			if bqCfg.ProjectID == "" {
				return fmt.Errorf("bigquery.project_id (or BQ_PROJECT) is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			exporter, err := infraBQ.NewLedgerExporter(ctx, bqCfg.ProjectID, bqCfg.Dataset, bqCfg.Table)
			if err != nil {
				return err
			}
			defer exporter.Close()

			if err := exporter.EnsureTable(ctx); err != nil {
				return err
			}
			stats, err := infraBQ.ExportLedgers(ctx, ledger.New(a.blobs), exporter, only, a.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows for %d users (%d skipped)\n", stats.Rows, stats.Users, stats.Skipped)

			if report && only != "" {
				totals, err := exporter.ExpenseByCategory(ctx, only)
				if err != nil {
					return err
				}
				for _, t := range totals {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %s\n", t.Category, t.Total.FloatString(2))
				}
			}
			return nil
		},
	}
	bq.Flags().StringVar(&only, "user", "", "Export only this user's ledger")
	bq.Flags().BoolVar(&report, "report", false, "With --user, print the exported expense totals per category")

	cmd.AddCommand(bq)
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror ledgers into external systems",
	}

	var dryRun bool
	notion := &cobra.Command{
		Use:   "notion",
		Short: "Mirror every ledger record into the Notion database",
		RunE: func(cmd *cobra.Command, args []string) error {
			nc := a.cfg.Notion
			if nc.Token == "" || nc.DatabaseID == "" {
				return fmt.Errorf("notion token and database ID are required (NOTION_TOKEN, NOTION_DATABASE_ID)")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			stats, err := notionsync.SyncLedgers(ctx, ledger.New(a.blobs), notionsync.NewNotionClient(nc.Token), nc.DatabaseID, dryRun)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d, archived %d, unchanged %d, failed %d\n",
				stats.Created, stats.Archived, stats.Skipped, stats.Failed)
			return nil
		},
	}
	notion.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without writing to Notion")

	cmd.AddCommand(notion)
	return cmd
}
