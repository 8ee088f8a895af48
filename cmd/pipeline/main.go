package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/extractor"
	"github.com/nhien36hk/StudentActivityTracker/internal/fetcher"
	"github.com/nhien36hk/StudentActivityTracker/internal/metrics"
	"github.com/nhien36hk/StudentActivityTracker/internal/parser"
	"github.com/nhien36hk/StudentActivityTracker/internal/pipeline"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/sqlite"
	"github.com/nhien36hk/StudentActivityTracker/pkg/config"
	appLogger "github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

func main() {
	limit := flag.Int("limit", 0, "maximum number of links to process (0 = all)")
	source := flag.String("source", "", "path to the source spreadsheet (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	metrics.Init()

	sourcePath := cfg.Source.Path
	if *source != "" {
		sourcePath = *source
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	recordParser, err := parser.New(parser.Config{
		IDPattern:      cfg.Parser.IDPattern,
		ClassPattern:   cfg.Parser.ClassPattern,
		NameKeywords:   cfg.Parser.NameKeywords,
		IDKeywords:     cfg.Parser.IDKeywords,
		ClassKeywords:  cfg.Parser.ClassKeywords,
		ScoreKeywords:  cfg.Parser.ScoreKeywords,
		OrdinalKeyword: cfg.Parser.OrdinalKeyword,
	})
	if err != nil {
		appLogger.Fatal("Invalid parser configuration", zap.Error(err))
	}

	runner := pipeline.NewRunner(
		pipeline.Config{
			SourcePath:  sourcePath,
			Limit:       *limit,
			SnapshotDir: cfg.Snapshot.Dir,
			Merge:       cfg.Snapshot.Merge,
		},
		extractor.New(cfg.Source.LinkKeywords, cfg.Source.HeaderRow),
		fetcher.New(fetcher.Config{
			Dir:         cfg.Fetcher.Dir,
			Workers:     cfg.Fetcher.Workers,
			MaxAttempts: cfg.Fetcher.MaxAttempts,
			Timeout:     time.Duration(cfg.Fetcher.TimeoutSec) * time.Second,
		}, sqliteClient),
		recordParser,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runner.Run(ctx)
	if err != nil {
		appLogger.Fatal("Pipeline run failed", zap.Error(err))
	}

	appLogger.Info("Done",
		zap.String("run_id", summary.RunID),
		zap.Int("students", summary.Students),
		zap.Int("unresolved", summary.Unresolved),
		zap.Duration("duration", summary.Duration),
	)
}
