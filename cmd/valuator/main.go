package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"thriftscan/valuator/internal/config"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

const usage = `Usage: valuator [command] [options]
Commands: import, start, process, server

For command-specific options, use: valuator [command] -h`

// commonFlags registers the flags every command accepts.
func commonFlags(fs *flag.FlagSet, cfg *config.Config, logLevel *string) {
	fs.StringVar(&cfg.DBPath, "db", config.GetEnvString("VALUATOR_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: VALUATOR_DB_PATH)")
	fs.StringVar(logLevel, "log-level", config.GetEnvString("VALUATOR_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: VALUATOR_LOG_LEVEL)")
}

// estimatorFlags registers the completion API settings.
func estimatorFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.AnthropicModel, "model", config.GetEnvString("VALUATOR_MODEL", config.DefaultAnthropicModel),
		"Completion model used for valuations (env: VALUATOR_MODEL)")
	fs.IntVar(&cfg.AnthropicMaxTokens, "max-tokens", config.GetEnvInt("VALUATOR_MAX_TOKENS", config.DefaultAnthropicMaxTokens),
		"Reply token budget per valuation (env: VALUATOR_MAX_TOKENS)")
}

// scanFlags registers the source and retry settings used by scans.
func scanFlags(fs *flag.FlagSet, cfg *config.Config, intervalMinutes *int) {
	fs.IntVar(intervalMinutes, "interval", config.GetEnvInt("VALUATOR_INTERVAL", config.DefaultInterval),
		"Interval in minutes between scans, 0 for one-shot mode (env: VALUATOR_INTERVAL)")
	fs.StringVar(&cfg.SourceMode, "source", config.GetEnvString("VALUATOR_SOURCE_MODE", config.DefaultSourceMode),
		"Default source mode for communities: json or rss (env: VALUATOR_SOURCE_MODE)")
	fs.StringVar(&cfg.RedditBaseURL, "reddit-url", config.GetEnvString("VALUATOR_REDDIT_URL", config.DefaultRedditBaseURL),
		"Base URL of the listing source (env: VALUATOR_REDDIT_URL)")
	fs.StringVar(&cfg.RedditUserAgent, "user-agent", config.GetEnvString("VALUATOR_USER_AGENT", config.DefaultRedditUserAgent),
		"User-Agent sent to the listing source (env: VALUATOR_USER_AGENT)")
	fs.IntVar(&cfg.ListingLimit, "limit", config.GetEnvInt("VALUATOR_LISTING_LIMIT", config.DefaultListingLimit),
		"Posts requested per community listing (env: VALUATOR_LISTING_LIMIT)")
	fs.DurationVar(&cfg.PostDelay, "post-delay", config.GetEnvDuration("VALUATOR_POST_DELAY", config.DefaultPostDelay),
		"Fixed pause after each processed post (env: VALUATOR_POST_DELAY)")
	fs.IntVar(&cfg.PostAttempts, "post-attempts", config.GetEnvInt("VALUATOR_POST_ATTEMPTS", config.DefaultPostAttempts),
		"Attempts per post before it is reported as failed (env: VALUATOR_POST_ATTEMPTS)")
	fs.IntVar(&cfg.FetchAttempts, "fetch-attempts", config.GetEnvInt("VALUATOR_FETCH_ATTEMPTS", config.DefaultFetchAttempts),
		"Attempts per community listing fetch (env: VALUATOR_FETCH_ATTEMPTS)")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", config.GetEnvDuration("VALUATOR_RETRY_DELAY", config.DefaultRetryDelay),
		"Base delay between retries, multiplied by the attempt number (env: VALUATOR_RETRY_DELAY)")
}

func main() {
	cfg := config.DefaultConfig()

	var logLevelStr string
	var intervalMinutes int

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	commonFlags(importCmd, cfg, &logLevelStr)
	importCmd.StringVar(&cfg.CommunitiesCSVPath, "csv", config.GetEnvString("VALUATOR_CSV_PATH", config.DefaultCommunitiesCSVPath),
		"Path to the communities CSV file (env: VALUATOR_CSV_PATH)")
	importCmd.StringVar(&cfg.SourceMode, "source", config.GetEnvString("VALUATOR_SOURCE_MODE", config.DefaultSourceMode),
		"Source mode for rows that do not name one: json or rss (env: VALUATOR_SOURCE_MODE)")

	startCmd := flag.NewFlagSet("start", flag.ExitOnError)
	commonFlags(startCmd, cfg, &logLevelStr)
	estimatorFlags(startCmd, cfg)
	scanFlags(startCmd, cfg, &intervalMinutes)

	processCmd := flag.NewFlagSet("process", flag.ExitOnError)
	commonFlags(processCmd, cfg, &logLevelStr)
	estimatorFlags(processCmd, cfg)
	var postFile string
	processCmd.StringVar(&postFile, "file", "-", "Path to a post JSON file, - for stdin")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	commonFlags(serverCmd, cfg, &logLevelStr)
	estimatorFlags(serverCmd, cfg)
	scanFlags(serverCmd, cfg, &intervalMinutes)
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("VALUATOR_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: VALUATOR_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("VALUATOR_PORT", config.DefaultServerPort),
		"Port to listen on (env: VALUATOR_PORT)")
	serverCmd.StringVar(&cfg.PublicURL, "public-url", config.GetEnvString("VALUATOR_PUBLIC_URL", config.DefaultPublicURL),
		"Base URL used to build valuation page links (env: VALUATOR_PUBLIC_URL)")
	var automation bool
	serverCmd.BoolVar(&automation, "automation", config.GetEnvBool("VALUATOR_AUTOMATION", false),
		"Start scheduled scans together with the server (env: VALUATOR_AUTOMATION)")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var (
		fs  *flag.FlagSet
		run func() error
	)
	switch os.Args[1] {
	case "import":
		fs, run = importCmd, func() error { return runImport(cfg) }
	case "start":
		fs, run = startCmd, func() error { return runStart(cfg) }
	case "process":
		fs, run = processCmd, func() error { return runProcess(cfg, postFile) }
	case "server":
		fs, run = serverCmd, func() error { return runServer(cfg, automation) }
	case "-h", "--help", "help":
		fmt.Println(usage)
		os.Exit(0)
	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}

	fs.Parse(os.Args[2:])

	// Handle log level parsing separately since it needs conversion
	if level, err := zerolog.ParseLevel(logLevelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	cfg.Interval = time.Duration(intervalMinutes) * time.Minute

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		os.Exit(2)
	}

	if err := run(); err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}
