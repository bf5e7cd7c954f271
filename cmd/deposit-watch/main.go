package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/swanchain/deposit-watch/pkg/blockwallets"
	"github.com/swanchain/deposit-watch/pkg/chainstatus"
	"github.com/swanchain/deposit-watch/pkg/config"
	"github.com/swanchain/deposit-watch/pkg/database"
	"github.com/swanchain/deposit-watch/pkg/deposit"
	"github.com/swanchain/deposit-watch/pkg/log"
	"github.com/swanchain/deposit-watch/pkg/notify"
	"github.com/swanchain/deposit-watch/pkg/store"
	"github.com/swanchain/deposit-watch/pkg/watcher"
)

const (
	exitOK = iota
	exitFailed
	exitConfig
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded, using environment variables: %s", err)
	}

	cfg, err := config.Load(args, os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		log.Errorf("Invalid configuration: %s", err)
		return exitConfig
	}
	if err := log.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Errorf("Invalid log settings: %s", err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, cleanup, err := buildRunner(ctx, cfg)
	if err != nil {
		log.Errorf("Startup failed: %s", err)
		return exitFailed
	}
	defer cleanup()

	report, err := runner.Run(ctx)
	if err != nil {
		return exitFailed
	}

	log.WithField("run_id", report.RunID).
		Infof("Received %s on %s after %d polls", report.Summary(), report.Address, report.Attempts)
	return exitOK
}

// buildRunner wires the API client, the poller and whichever optional
// collaborators the configuration enables.
func buildRunner(ctx context.Context, cfg *config.Configuration) (*deposit.Runner, func(), error) {
	cleanup := func() {}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	client := blockwallets.NewClient(cfg.BaseURL, cfg.APIKey, httpClient)

	schedule, err := watcher.ParseSchedule(cfg.PollSchedule)
	if err != nil {
		return nil, cleanup, err
	}

	runner := &deposit.Runner{
		Creator:    client,
		Currency:   cfg.Currency,
		CategoryID: cfg.BlockCategoryID,
		Waiter: &watcher.Poller{
			Querier:     client,
			Schedule:    schedule,
			MaxAttempts: cfg.MaxAttempts,
			Timeout:     cfg.PollTimeout,
		},
	}

	if cfg.Database.Enabled() {
		db, err := database.ConnectToDB(cfg.Database)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { db.Close() }

		s := store.New(db)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, cleanup, err
		}
		runner.Recorder = s
	}

	var notifiers notify.Multi
	if cfg.TeamsWebhookURL != "" {
		notifiers = append(notifiers, &notify.Teams{WebhookURL: cfg.TeamsWebhookURL, HTTPClient: httpClient})
	}
	if cfg.Email.Enabled() {
		notifiers = append(notifiers, &notify.Email{
			Host:       cfg.Email.Host,
			Port:       cfg.Email.Port,
			User:       cfg.Email.User,
			Password:   cfg.Email.Password,
			Recipients: cfg.Email.Recipients,
		})
	}
	if len(notifiers) > 0 {
		runner.Notifier = notifiers
	}

	if cfg.TronRPCURL != "" {
		runner.Health = chainstatus.New(cfg.TronRPCURL)
	}

	return runner, cleanup, nil
}
