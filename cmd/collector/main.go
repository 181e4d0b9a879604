// Command collector runs the daily invoice reminder job: it reads
// overdue invoices from the workbook, creates escalating reminder
// drafts through the drafts API, and writes tracking state back.
// Drafts are never auto-sent; a human reviews and sends them.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-collector/internal/collector"
	"github.com/garyjia/invoice-collector/internal/config"
	"github.com/garyjia/invoice-collector/internal/gateway"
	"github.com/garyjia/invoice-collector/internal/repository"
	"github.com/garyjia/invoice-collector/internal/router"
	"github.com/garyjia/invoice-collector/internal/store"
	"github.com/garyjia/invoice-collector/internal/template"
	"github.com/garyjia/invoice-collector/pkg/database"
	"github.com/garyjia/invoice-collector/pkg/utils"
)

var Version = "dev"

func main() {
	_ = gotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:          "collector",
		Short:        "Creates escalating reminder drafts for overdue invoices",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to config file")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(previewCmd(&configPath))
	rootCmd.AddCommand(historyCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd(configPath *string) *cobra.Command {
	var dryRun bool
	var dateStr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one collection run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(*configPath, dateStr, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decide and render but create no drafts and write nothing back")
	cmd.Flags().StringVar(&dateStr, "date", "", "Reference date (YYYY-MM-DD), defaults to today")
	return cmd
}

func previewCmd(configPath *string) *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show what a run would do without side effects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(*configPath, dateStr, true)
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "Reference date (YYYY-MM-DD), defaults to today")
	return cmd
}

func historyCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the local ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Ledger.Enabled {
				return fmt.Errorf("run ledger is disabled in configuration")
			}

			logger := zap.NewNop()
			db, err := database.Open(cfg.Ledger.Path, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			repo, err := repository.NewRunRepository(db, logger)
			if err != nil {
				return err
			}

			records, err := repo.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tMODE\tDRAFTS\tERRORS\tROWS UPDATED")
			for _, rec := range records {
				mode := "run"
				if rec.DryRun {
					mode = "dry-run"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
					rec.RunDate.Format("2006-01-02"), mode, rec.DraftsCreated, rec.ErrorCount, rec.RowsUpdated)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func executeRun(configPath, dateStr string, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	today := time.Now()
	if dateStr != "" {
		if today, err = time.Parse("2006-01-02", dateStr); err != nil {
			return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", dateStr, err)
		}
	}

	if !cfg.WithinBusinessHours(time.Now()) {
		logger.Warn("Running outside configured business hours",
			zap.Int("start_hour", cfg.Window.StartHour),
			zap.Int("end_hour", cfg.Window.EndHour))
	}

	rtr, err := router.New(cfg.Stages)
	if err != nil {
		return fmt.Errorf("invalid stage configuration: %w", err)
	}

	invoices := store.NewExcelStore(cfg.Store.Path, cfg.Store.Sheet, logger)
	renderer := template.NewRenderer(cfg.Templates.Dir, logger)
	drafts := gateway.NewDraftClient(gateway.Config{
		BaseURL:     cfg.Drafts.BaseURL,
		APIToken:    cfg.Drafts.APIToken,
		Sender:      cfg.Drafts.Sender,
		MaxRetries:  cfg.Drafts.MaxRetries,
		InitialWait: cfg.Drafts.InitialWait,
	}, logger)

	var recorder collector.RunRecorder
	if cfg.Ledger.Enabled {
		db, err := database.Open(cfg.Ledger.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer db.Close()

		repo, err := repository.NewRunRepository(db, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize run ledger: %w", err)
		}
		recorder = repo
	}

	runner := collector.NewRunner(invoices, drafts, renderer, rtr, recorder, logger)

	result, err := runner.Run(context.Background(), today, dryRun)
	if err != nil {
		return err
	}

	collector.WriteSummary(os.Stdout, result)

	if result.HasErrors() {
		return fmt.Errorf("completed with %d error(s)", len(result.Errors))
	}
	return nil
}
