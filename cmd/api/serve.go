package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bryanwahyu/palmview/internal/application/analysis"
	"github.com/bryanwahyu/palmview/internal/config"
	"github.com/bryanwahyu/palmview/internal/infra/httpserver"
	"github.com/bryanwahyu/palmview/internal/middleware"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if !c.IsSet("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	return cfg, nil
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	ctrl := &analysis.Controller{
		Extractor: deps.Extractor,
		States:    deps.States,
		History:   deps.History,
		Archive:   deps.Archive,
		Recorder:  middleware.AnalysisRecorder{},
	}

	handler := httpserver.NewRouter(httpserver.Options{
		Controller:     ctrl,
		History:        deps.History,
		Checkers:       deps.Checkers,
		AdminKeys:      cfg.Admin.APIKeys,
		CookieTTL:      cfg.Session.TTL,
		SecureCookies:  cfg.Server.SecureCookies,
		RateLimit:      cfg.RateLimit.Requests,
		RateWindow:     cfg.RateLimit.Window,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s provider=%s session=%s history=%s", addr, cfg.AI.Provider, cfg.Session.Driver, orNone(cfg.History.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	// let in-flight analyses settle so history and archive writes are not lost
	ctrl.Wait()
	return nil
}

func analyzeAction(c *cli.Context) error {
	url := strings.TrimSpace(c.Args().First())
	if url == "" {
		return cli.Exit("usage: palmview analyze <url>", 2)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	deps, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	ctrl := &analysis.Controller{
		Extractor: deps.Extractor,
		States:    deps.States,
		History:   deps.History,
		Archive:   deps.Archive,
	}
	d, err := ctrl.Analyze(ctx, url)
	if err != nil {
		return cli.Exit(analysis.DisplayMessage(err), 1)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
