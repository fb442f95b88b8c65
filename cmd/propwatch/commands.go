package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/pevans/propwatch/api"
	"github.com/pevans/propwatch/config"
	"github.com/pevans/propwatch/logger"
	"github.com/pevans/propwatch/notify"
	"github.com/pevans/propwatch/store"
	"github.com/pevans/propwatch/watch"
)

const shutdownTimeout = 60 * time.Second

// setup holds everything a watching command needs.
type setup struct {
	log     logger.Logger
	cfg     *config.Config
	records store.RecordStore
	service *watch.Service
}

func (s *setup) close() {
	s.records.Close()
	s.log.Sync()
}

// newSetup loads config, secrets and the record store and wires the watch
// service.
func newSetup(opts *options, interval time.Duration) *setup {
	log, err := opts.newLogger()
	if err != nil {
		fatal("failed to create logger: %v", err)
	}

	cfg, err := opts.loadConfig(log)
	if err != nil {
		fatal("%v", err)
	}

	password, err := config.MailPassword()
	if err != nil {
		fatal("%v", err)
	}

	mailer, err := notify.NewMailer(cfg.Settings, password, log)
	if err != nil {
		fatal("%v", err)
	}

	sc, err := opts.newScraper(log)
	if err != nil {
		fatal("%v", err)
	}

	records, err := opts.openStore()
	if err != nil {
		fatal("%v", err)
	}

	return &setup{
		log:     log,
		cfg:     cfg,
		records: records,
		service: watch.NewService(cfg.Queries, sc, mailer, records, interval, log),
	}
}

func handleRun(args []string) {
	var opts options
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	opts.register(fs)
	fs.Parse(args)

	s := newSetup(&opts, 0)
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	result, err := s.service.RunOnce(ctx)
	if err != nil {
		s.log.Error("Run failed", logger.Error(err))
		s.close()
		os.Exit(1)
	}

	s.log.Info("Run completed",
		logger.Int("collected", result.Collected),
		logger.Int("new", len(result.New)),
		logger.Bool("notified", result.Notified),
		logger.Strings("failed_queries", result.FailedQueries),
	)
}

func handleWatch(args []string) {
	var opts options
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	opts.register(fs)
	interval := fs.Duration("interval", getEnvDuration("PROPWATCH_INTERVAL", watch.DefaultInterval), "Pause between runs (PROPWATCH_INTERVAL)")
	fs.Parse(args)

	s := newSetup(&opts, *interval)
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.service.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		s.log.Info("Shutting down gracefully", logger.String("signal", sig.String()))
		s.service.Stop()

		// The run in progress is allowed to finish
		shutdownTimer := time.NewTimer(shutdownTimeout)
		defer shutdownTimer.Stop()
		select {
		case <-errChan:
			s.log.Info("Service stopped")
		case <-shutdownTimer.C:
			s.log.Warn("Shutdown timeout exceeded, cancelling run")
			cancel()
			<-errChan
		}
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("Service error", logger.Error(err))
			s.close()
			os.Exit(1)
		}
	}
}

func handleURLs(args []string) {
	var opts options
	fs := flag.NewFlagSet("urls", flag.ExitOnError)
	opts.register(fs)
	fs.Parse(args)

	cfg, err := config.Load(opts.configPath, opts.parseOptions())
	if err != nil {
		fatal("%v", err)
	}

	for _, q := range cfg.Queries {
		fmt.Printf("%s\t%s\n", q.Name, q.URL)
	}
	for _, skipped := range cfg.Skipped {
		fmt.Fprintf(os.Stderr, "Skipped: %v\n", skipped)
	}
}

func handleValidate(args []string) {
	var opts options
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	opts.register(fs)
	fs.Parse(args)

	cfg, err := config.Load(opts.configPath, opts.parseOptions())
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("%s: %d queries, %d recipients\n", opts.configPath, len(cfg.Queries), len(cfg.Settings.MailTo))
	for _, skipped := range cfg.Skipped {
		fmt.Printf("  skipped %v\n", skipped)
	}

	names := make([]string, 0, len(cfg.Queries))
	for _, q := range cfg.Queries {
		names = append(names, q.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
}

func handleServe(args []string) {
	var opts options
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	opts.register(fs)
	addr := fs.String("addr", getEnv("PROPWATCH_ADDR", "localhost:8082"), "Listen address (PROPWATCH_ADDR)")
	fs.Parse(args)

	log, err := opts.newLogger()
	if err != nil {
		fatal("failed to create logger: %v", err)
	}
	defer log.Sync()

	cfg, err := opts.loadConfig(log)
	if err != nil {
		fatal("%v", err)
	}

	records, err := opts.openStore()
	if err != nil {
		fatal("%v", err)
	}
	defer records.Close()

	router := api.NewServer(records, cfg.Queries, log).SetupRouter()
	srv := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting status API", logger.String("addr", "http://"+*addr+"/api/v1"))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", logger.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down status API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown failed", logger.Error(err))
		}
	}
}
