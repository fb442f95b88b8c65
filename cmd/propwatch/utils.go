package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pevans/propwatch/config"
	"github.com/pevans/propwatch/discovery"
	"github.com/pevans/propwatch/logger"
	"github.com/pevans/propwatch/scraper"
	"github.com/pevans/propwatch/store"
)

var loadEnv = config.LoadEnv

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration parses a duration from environment variable or returns default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool parses a bool from environment variable or returns default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// options holds the flags shared by every command.
type options struct {
	configPath      string
	storeType       string
	storeDSN        string
	selectorsPath   string
	logLevel        string
	logFormat       string
	skipInvalid     bool
	allowDuplicates bool
}

// register adds the shared flags to fs with environment defaults.
func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", getEnv("PROPWATCH_CONFIG", config.DefaultPath), "Path to the config file (PROPWATCH_CONFIG)")
	fs.StringVar(&o.storeType, "store", getEnv("PROPWATCH_STORE_TYPE", store.KindFile), "Record store type: file, sqlite, postgres (PROPWATCH_STORE_TYPE)")
	fs.StringVar(&o.storeDSN, "dsn", getEnv("PROPWATCH_STORE_DSN", store.DefaultFilePath), "Record store path or DSN (PROPWATCH_STORE_DSN)")
	fs.StringVar(&o.selectorsPath, "selectors", getEnv("PROPWATCH_SELECTORS", ""), "JSON file overriding the page selectors (PROPWATCH_SELECTORS)")
	fs.StringVar(&o.logLevel, "log-level", getEnv("PROPWATCH_LOG_LEVEL", "info"), "Log level (PROPWATCH_LOG_LEVEL)")
	fs.StringVar(&o.logFormat, "log-format", getEnv("PROPWATCH_LOG_FORMAT", logger.FormatJSON), "Log format: json, console (PROPWATCH_LOG_FORMAT)")
	fs.BoolVar(&o.skipInvalid, "skip-invalid", getEnvBool("PROPWATCH_SKIP_INVALID", false), "Skip queries whose search parameters are invalid (PROPWATCH_SKIP_INVALID)")
	fs.BoolVar(&o.allowDuplicates, "allow-duplicates", getEnvBool("PROPWATCH_ALLOW_DUPLICATES", false), "Let a later query replace an earlier one with the same name (PROPWATCH_ALLOW_DUPLICATES)")
}

func (o *options) parseOptions() config.ParseOptions {
	opts := config.ParseOptions{SkipInvalidQueries: o.skipInvalid}
	if o.allowDuplicates {
		opts.DuplicateNames = config.DuplicatesLastWins
	}
	return opts
}

func (o *options) newLogger() (logger.Logger, error) {
	return logger.New(logger.Config{Level: o.logLevel, Format: o.logFormat})
}

// loadConfig loads the config file and logs every skipped query.
func (o *options) loadConfig(log logger.Logger) (*config.Config, error) {
	cfg, err := config.Load(o.configPath, o.parseOptions())
	if err != nil {
		return nil, err
	}
	for _, skipped := range cfg.Skipped {
		log.Warn("Skipping invalid query",
			logger.String("query", skipped.Name),
			logger.Error(skipped.Err),
		)
	}
	return cfg, nil
}

func (o *options) openStore() (store.RecordStore, error) {
	records, err := store.Open(o.storeType, o.storeDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return records, nil
}

func (o *options) newScraper(log logger.Logger) (*discovery.Scraper, error) {
	var opts discovery.Options
	if o.selectorsPath != "" {
		sel, err := loadSelectors(o.selectorsPath)
		if err != nil {
			return nil, err
		}
		opts.Selectors = sel
	}
	return discovery.NewScraper(opts, log)
}

// loadSelectors reads selectors from a JSON file. Fields left out keep their
// default values.
func loadSelectors(path string) (scraper.Selectors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scraper.Selectors{}, fmt.Errorf("failed to read selectors file: %w", err)
	}

	sel := scraper.DefaultSelectors()
	if err := json.Unmarshal(data, &sel); err != nil {
		return scraper.Selectors{}, fmt.Errorf("failed to parse selectors file: %w", err)
	}
	if _, err := sel.Compile(); err != nil {
		return scraper.Selectors{}, fmt.Errorf("invalid selectors file: %w", err)
	}
	return sel, nil
}

// fatal prints err and exits.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
