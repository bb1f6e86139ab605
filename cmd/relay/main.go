package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fedirelay/internal/config"
	"fedirelay/internal/model"
	"fedirelay/internal/relay"
	"fedirelay/internal/source"
)

func main() {
	path := flag.String("config", "", "path to the configuration file")
	flag.Parse()
	if *path == "" {
		*path = os.Getenv("FEDIRELAY_CONFIG")
	}
	if *path == "" {
		*path = "config.yaml"
	}

	cfg, err := config.Load(*path)
	if err != nil {
		slog.Error("load config", "path", *path, "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Main.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	accountID := cfg.Main.User
	if accountID == "auto" {
		lookupCtx, lookupCancel := context.WithTimeout(ctx, 30*time.Second)
		account, err := source.VerifyCredentials(lookupCtx, http.DefaultClient, cfg.Main.Instance, cfg.Main.Token)
		lookupCancel()
		if err != nil {
			log.Error("resolve account", "error", err)
			os.Exit(1)
		}
		accountID = account.ID
		log.Info("resolved account", "id", account.ID, "acct", account.Acct)
	}

	r, err := relay.Load(cfg, accountID, log)
	if err != nil {
		log.Error("load relay", "error", err)
		os.Exit(1)
	}

	src := source.New(source.Options{
		Instance:      cfg.Main.Instance,
		Token:         cfg.Main.Token,
		List:          cfg.Main.List,
		AutoReconnect: cfg.Main.AutoReconnect,
		Delay:         time.Duration(cfg.Main.ReconnectDelay),
	}, log)

	log.Info("starting relay", "instance", cfg.Main.Instance, "list", cfg.Main.List)

	posts := make(chan *model.Post)
	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx, posts) }()

	r.Run(ctx, posts)

	if err := <-errc; err != nil {
		log.Error("stream failed", "error", err)
		os.Exit(1)
	}

	log.Info("relay stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
