// wbwatch-worker runs exactly one extraction and exits. The supervisor
// spawns one of these per request; stdout carries only the JSON report,
// all logging goes to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/wbwatch/wbwatch/internal/config"
	"github.com/wbwatch/wbwatch/internal/fetcher"
	"github.com/wbwatch/wbwatch/internal/models"
	"github.com/wbwatch/wbwatch/internal/parser"
	"github.com/wbwatch/wbwatch/internal/scraper"
	"github.com/wbwatch/wbwatch/internal/supervisor"
)

func main() {
	article := flag.String("article", "", "product article to extract")
	profileRoot := flag.String("profile-root", "", "directory for the per-run browser profile")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *article == "" || *profileRoot == "" {
		fmt.Fprintln(os.Stderr, "usage: wbwatch-worker -article <id> -profile-root <dir>")
		os.Exit(2)
	}

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	report := run(cfg, logger, *article, *profileRoot)

	if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, article, profileRoot string) *supervisor.Report {
	browserOpts := fetcher.DefaultBrowserOptions()
	browserOpts.Headless = cfg.Browser.Headless
	browserOpts.NavTimeout = cfg.Browser.NavTimeout
	browserOpts.LandmarkWait = cfg.Browser.LandmarkWait
	browserOpts.SettleDelay = cfg.Browser.SettleDelay
	browserOpts.Locale = cfg.Browser.Locale
	browserOpts.TimezoneID = cfg.Browser.TimezoneID
	browserOpts.AcceptLanguage = cfg.Browser.AcceptLanguage

	orchestrator := scraper.NewOrchestrator(
		fetcher.NewCardAPIFetcher(logger),
		fetcher.NewBrowserFetcher(profileRoot, browserOpts, logger),
		parser.NewWBParser(),
		logger,
	)

	snapshot, err := orchestrator.Extract(context.Background(), article)
	if err != nil {
		var ee *models.ExtractionError
		if errors.As(err, &ee) {
			return &supervisor.Report{Error: &supervisor.ReportError{Code: ee.Code, Message: ee.Message}}
		}
		return &supervisor.Report{Error: &supervisor.ReportError{
			Code:    models.ErrFetchTransport,
			Message: err.Error(),
		}}
	}

	return &supervisor.Report{Snapshot: snapshot}
}
