package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"apartment-tracker/config"
	"apartment-tracker/fetcher"
	"apartment-tracker/pipeline"
	"apartment-tracker/scraper"
	"apartment-tracker/services"
	"apartment-tracker/sites"
	"apartment-tracker/storage"
	"apartment-tracker/utils"
)

var errAllFailed = errors.New("every source failed")

const postgresHint = "Check the POSTGRES_* settings or run with --dry-run"

type runOptions struct {
	dryRun    bool
	noExport  bool
	exportDir string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var sourcesFile, logLevel string
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "apartments",
		Short:         "Track unit availability and rent across apartment websites",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if sourcesFile != "" {
				cfg.SourcesFile = sourcesFile
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
		},
	}
	root.PersistentFlags().StringVar(&sourcesFile, "sources", "", "source registry YAML (default $SOURCES_FILE)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")

	root.AddCommand(newRunCmd(cfg), newSourcesCmd(cfg))
	return root
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [source...]",
		Short: "Harvest the enabled sources, or the named ones",
		Example: `  apartments run
  apartments run LINEA "Eleven 40" --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := utils.NewLogger(cfg.LogLevel)
			err := run(cmd.Context(), cfg, opts, args, logger)
			if err != nil {
				logger.Error("%v", err)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "skip PostgreSQL; export and report only")
	cmd.Flags().BoolVar(&opts.noExport, "no-export", false, "skip the per-source CSV export")
	cmd.Flags().StringVar(&opts.exportDir, "export-dir", "", "CSV export directory (default $EXPORT_DIR)")
	return cmd
}

func newSourcesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the source registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srcs, err := config.LoadSources(cfg.SourcesFile)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFAMILY\tDETAIL\tENABLED\tURL")
			for _, s := range srcs {
				family := s.Family
				if s.Layout != "" {
					family += "/" + s.Layout
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", s.Name, family, s.Detail, s.Enabled, s.URL)
			}
			return w.Flush()
		},
	}
}

func run(ctx context.Context, cfg *config.Config, opts *runOptions, names []string, logger *utils.Logger) error {
	logger.Info("=== Apartment availability harvest starting ===")
	logger.Info("Config: concurrency: %d | rate: %dms | page timeout: %v | detail timeout: %v",
		cfg.MaxConcurrency, cfg.RateLimitMs, cfg.PageTimeout(), cfg.DetailTimeout())

	registry, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return err
	}
	srcs, err := config.Select(registry, names)
	if err != nil {
		return err
	}
	if len(srcs) == 0 {
		return fmt.Errorf("no enabled sources in %s", cfg.SourcesFile)
	}

	var sink storage.Sink = storage.DiscardSink{}
	if !opts.dryRun {
		pg, err := storage.NewPostgresSink(ctx, cfg.DSN(), logger)
		if err != nil {
			logger.Error(postgresHint)
			return err
		}
		sink = pg
	}
	defer sink.Close()

	browser, err := fetcher.NewChromeFetcher(fetcher.ChromeOptions{
		ChromeBin:   cfg.ChromeBin,
		Headless:    cfg.Headless,
		PageTimeout: cfg.PageTimeout(),
		MaxRetries:  cfg.MaxRetries,
	}, logger)
	if err != nil {
		return err
	}
	defer browser.Close()

	static := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		PageTimeout: cfg.PageTimeout(),
		MaxRetries:  cfg.MaxRetries,
	}, logger)

	built, err := sites.BuildAll(srcs, sites.Deps{Browser: browser, Static: static, Config: cfg, Logger: logger})
	if err != nil {
		return err
	}

	var exporter pipeline.Exporter
	if !opts.noExport {
		dir := cfg.ExportDir
		if opts.exportDir != "" {
			dir = opts.exportDir
		}
		exporter = storage.NewCSVExporter(dir)
	}

	p := pipeline.New(
		services.NewNormalizer(sites.RulesTable(srcs)),
		exporter,
		sink,
		pipeline.Options{Resolver: scraper.ResolverOptions{
			MaxConcurrency: cfg.MaxConcurrency,
			RateLimitMs:    cfg.RateLimitMs,
			Timeout:        cfg.DetailTimeout(),
		}},
		logger,
	)
	reports, runErr := p.RunAll(ctx, built)

	insights := services.NewInsightService(logger)
	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
			continue
		}
		insights.Print(insights.Generate(r.Source, r.Units))
	}

	logger.Info("=== Harvest finished: %d/%d sources succeeded ===", len(reports)-failed, len(built))
	if len(built) > 0 && failed+len(built)-len(reports) == len(built) {
		return fmt.Errorf("%w: %v", errAllFailed, runErr)
	}
	return nil
}
