package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"thriftscan/valuator/internal/config"
	"thriftscan/valuator/internal/database"
	"thriftscan/valuator/internal/dedupe"
	"thriftscan/valuator/internal/importer"
	"thriftscan/valuator/internal/llm"
	"thriftscan/valuator/internal/models"
	"thriftscan/valuator/internal/normalize"
	"thriftscan/valuator/internal/process"
	"thriftscan/valuator/internal/reddit"
	"thriftscan/valuator/internal/scheduler"
	"thriftscan/valuator/internal/server"
	"thriftscan/valuator/internal/storage"
	"thriftscan/valuator/internal/valuation"
)

func openRepository(cfg *config.Config) (*database.DB, *storage.Repository, error) {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, storage.NewRepository(db), nil
}

// newPipeline wires normalization, duplicate lookup and the estimator
// around repo.
func newPipeline(ctx context.Context, cfg *config.Config, repo *storage.Repository) *process.Pipeline {
	if cfg.AnthropicAPIKey == "" {
		log.Warn().Msg("ANTHROPIC_API_KEY is not set, every valuation will use the category fallback")
	}
	completer := llm.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.AnthropicModel,
		llm.WithMaxTokens(int64(cfg.AnthropicMaxTokens)))

	estimator := valuation.NewEstimator(completer, int64(cfg.AnthropicMaxTokens))
	if cats, err := repo.Categories(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load categories, using built-in value ranges")
	} else {
		estimator.SetCategories(cats)
	}

	return process.NewPipeline(normalize.NewNormalizer(dedupe.NewFinder(repo)), estimator, repo)
}

// newScanner builds a scanner with one source per supported mode. Both
// sources share the configured request rate.
func newScanner(cfg *config.Config, repo *storage.Repository, pipeline *process.Pipeline) (*process.CommunityScanner, error) {
	opts := reddit.Options{
		BaseURL:   cfg.RedditBaseURL,
		UserAgent: cfg.RedditUserAgent,
		Limit:     cfg.ListingLimit,
		Timeout:   cfg.RequestTimeout,
		Rate:      rate.Limit(cfg.SourceRate),
	}
	sources := map[string]reddit.Source{
		models.SourceModeJSON: reddit.NewClient(opts),
		models.SourceModeRSS:  reddit.NewRSSSource(opts),
	}
	return process.NewCommunityScanner(repo, pipeline, sources, process.ScanConfig{
		FetchAttempts: cfg.FetchAttempts,
		PostAttempts:  cfg.PostAttempts,
		RetryDelay:    cfg.RetryDelay,
		PostDelay:     cfg.PostDelay,
	})
}

// runImport adds communities from the CSV file, downloading it first when
// VALUATOR_COMMUNITIES_URL is set. Without either, the configured community
// list is used. Existing communities are left untouched.
func runImport(cfg *config.Config) error {
	db, repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	if _, err := os.Stat(cfg.CommunitiesCSVPath); errors.Is(err, os.ErrNotExist) && cfg.CommunitiesURL == "" {
		log.Info().
			Str("csv", cfg.CommunitiesCSVPath).
			Strs("communities", cfg.Communities).
			Msg("No communities CSV found, importing configured list")
		added, err := repo.EnsureCommunities(ctx, cfg.Communities, cfg.SourceMode)
		if err != nil {
			return fmt.Errorf("failed to add communities: %w", err)
		}
		log.Info().Int("added", added).Msg("Import completed successfully")
		return nil
	}

	summary, err := importer.NewImporter(repo, cfg.SourceMode).ImportFile(ctx, cfg.CommunitiesCSVPath, cfg.CommunitiesURL)
	if err != nil {
		return err
	}
	for _, e := range summary.Errors {
		log.Warn().Str("error", e).Msg("Row skipped")
	}
	return nil
}

// runStart scans every active community once, or repeatedly when an
// interval is configured, until a shutdown signal arrives.
func runStart(cfg *config.Config) error {
	db, repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	go func() {
		select {
		case sig := <-shutdown:
			log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	scanner, err := newScanner(cfg, repo, newPipeline(ctx, cfg, repo))
	if err != nil {
		return fmt.Errorf("failed to initialize scanner: %w", err)
	}
	sched := scheduler.New(scanner)

	if cfg.Interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(cfg.Interval.Minutes())).Msg("Running in periodic mode")
	}

	report, err := sched.RunNow(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Scan canceled by shutdown signal")
			return nil
		}
		if cfg.Interval <= 0 {
			return err
		}
		log.Error().Err(err).Msg("Initial scan failed")
	} else {
		logReport(report)
	}

	if cfg.Interval <= 0 {
		log.Info().Msg("One-shot scan completed, exiting")
		return nil
	}

	if err := sched.Start(cfg.Interval); err != nil {
		return err
	}
	<-ctx.Done()
	log.Info().Msg("Shutting down periodic scans")
	return sched.Stop()
}

func logReport(report *process.Report) {
	run := report.Run
	log.Info().
		Str("run_id", run.ID).
		Int("communities", run.Communities).
		Int("processed", run.Processed).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Strs("created", report.Created).
		Msg("Scan finished")
}

// runProcess values a single post read from path, or stdin for "-", and
// prints where it can be found.
func runProcess(cfg *config.Config, path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open post file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var post models.Post
	if err := json.NewDecoder(r).Decode(&post); err != nil {
		return fmt.Errorf("failed to decode post: %w", err)
	}

	db, repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := newPipeline(ctx, cfg, repo).ProcessPost(ctx, &post)
	if err != nil {
		return err
	}

	v := res.Valuation
	fmt.Printf("url:        %s/value/%s\n", strings.TrimRight(cfg.PublicURL, "/"), v.Slug)
	fmt.Printf("created:    %t\n", res.Created)
	if v.Valued() {
		fmt.Printf("value:      $%.0f - $%.0f\n", v.ValueLow.Float64, v.ValueHigh.Float64)
		fmt.Printf("confidence: %.2f\n", v.Confidence.Float64)
	}
	if res.Valued {
		fmt.Printf("outcome:    %s\n", res.Outcome)
	}
	if res.Duplicate != nil {
		fmt.Printf("duplicates: %d (%s)\n", len(res.Duplicate.Matches), res.Duplicate.Type)
	}
	return nil
}

// runServer serves the read API, valuation pages and admin routes. With
// automation enabled, scheduled scans start together with the server.
func runServer(cfg *config.Config, automation bool) error {
	db, repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline := newPipeline(ctx, cfg, repo)
	scanner, err := newScanner(cfg, repo, pipeline)
	if err != nil {
		return fmt.Errorf("failed to initialize scanner: %w", err)
	}
	sched := scheduler.New(scanner)

	defaultInterval := cfg.Interval
	if defaultInterval <= 0 {
		defaultInterval = time.Duration(config.DefaultInterval) * time.Minute
	}
	if automation {
		if err := sched.Start(defaultInterval); err != nil {
			return err
		}
	}

	handler := server.NewRouter(server.Deps{
		DB:              db,
		Store:           repo,
		Communities:     repo,
		Processor:       pipeline,
		Automation:      sched,
		APIKey:          cfg.APIKey,
		PublicURL:       cfg.PublicURL,
		DefaultInterval: defaultInterval,
	}, log.Logger)

	err = server.RunServer(ctx, handler, cfg.ListenAddr(), log.Logger)
	if stopErr := sched.Stop(); stopErr != nil && !errors.Is(stopErr, scheduler.ErrNotRunning) {
		log.Warn().Err(stopErr).Msg("Failed to stop automation")
	}
	return err
}
