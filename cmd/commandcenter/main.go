// Command commandcenter runs the local notification aggregation server:
// it connects the configured source adapters, persists everything they
// observe, and serves the feed over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/command-center/internal/credential"
	"github.com/nhle/command-center/internal/httpapi"
	"github.com/nhle/command-center/internal/hub"
	"github.com/nhle/command-center/internal/logger"
	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/registry"
	"github.com/nhle/command-center/internal/source"
	"github.com/nhle/command-center/internal/source/asana"
	"github.com/nhle/command-center/internal/source/gmail"
	"github.com/nhle/command-center/internal/source/mailbox"
	"github.com/nhle/command-center/internal/source/outlook"
	"github.com/nhle/command-center/internal/source/plane"
	"github.com/nhle/command-center/internal/source/slack"
	"github.com/nhle/command-center/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String(
		"config", model.DefaultConfigPath(), "path to the configuration file",
	)
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	// First run: write a starter config so there is something to edit.
	if _, statErr := os.Stat(*configPath); os.IsNotExist(statErr) {
		if err := model.SaveConfig(*configPath, cfg); err != nil {
			return err
		}
	}

	log := logger.Init(cfg.Server.Env)
	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	broadcastHub := hub.New(log)
	reg := registry.New(log)

	pollInterval := time.Duration(cfg.PollIntervalSec) * time.Second
	for _, src := range buildSources(cfg, pollInterval, reg) {
		reg.Add(source.NewRunner(src, st, broadcastHub, log))
	}

	startCtx, cancelStart := context.WithTimeout(
		context.Background(), time.Minute,
	)
	reg.StartAll(startCtx)
	cancelStart()

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: httpapi.NewServer(st, reg, broadcastHub, log).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	reg.StopAll(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown incomplete", "error", err)
	}
	return nil
}

// buildSources instantiates one adapter per configured account and
// registers the trackers that accept task creation. Tokens are resolved
// from the system keyring at connect time, never stored in config.
func buildSources(
	cfg *model.AppConfig,
	pollInterval time.Duration,
	reg *registry.Registry,
) []source.Source {
	log := logger.Get()
	var sources []source.Source

	for _, account := range cfg.Google.Accounts {
		sources = append(sources, gmail.New(
			account,
			credential.TokenFunc("gmail", account),
			pollInterval,
			log,
		))
	}

	if cfg.Outlook.Account != "" {
		sources = append(sources, outlook.New(
			cfg.Outlook.Account,
			credential.TokenFunc("outlook", cfg.Outlook.Account),
			pollInterval,
			log,
		))
	}

	for _, workspace := range cfg.Slack {
		sources = append(sources, slack.New(
			workspace.Name,
			credential.TokenFunc("slack", workspace.Name),
			pollInterval,
			log,
		))
	}

	if cfg.Asana.WorkspaceGID != "" {
		adapter := asana.New(
			cfg.Asana.WorkspaceGID,
			cfg.Asana.WorkspaceGID,
			cfg.Asana.DefaultProjectGID,
			credential.TokenFunc("asana", cfg.Asana.WorkspaceGID),
			pollInterval,
			log,
		)
		sources = append(sources, adapter)
		reg.AddTracker("asana", adapter)
	}

	if cfg.Plane.WorkspaceSlug != "" {
		adapter := plane.New(
			cfg.Plane.WorkspaceSlug,
			cfg.Plane.APIURL,
			cfg.Plane.WorkspaceSlug,
			cfg.Plane.DefaultProjectID,
			credential.TokenFunc("plane", cfg.Plane.WorkspaceSlug),
			pollInterval,
			log,
		)
		sources = append(sources, adapter)
		reg.AddTracker("plane", adapter)
	}

	for _, mb := range cfg.Mailboxes {
		sources = append(sources, mailbox.New(
			mailbox.Settings{
				IMAPHost: mb.IMAPHost,
				IMAPPort: mb.IMAPPort,
				SMTPHost: mb.SMTPHost,
				SMTPPort: mb.SMTPPort,
				Username: mb.Username,
				UseTLS:   mb.UseTLS,
			},
			credential.TokenFunc("mailbox", mb.Username),
			pollInterval,
			log,
		))
	}

	return sources
}
