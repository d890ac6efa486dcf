// adinsights serves advertising-insights analysis tools over HTTP and the command line.
//
// Usage:
//
//	adinsights serve
//	adinsights tools
//	adinsights invoke get_campaign_performance --args '{"since":"2024-01-01","until":"2024-01-31"}'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiusdt/adinsights/internal/config"
	"github.com/radiusdt/adinsights/internal/httpserver"
	"github.com/radiusdt/adinsights/internal/middleware"
	"github.com/radiusdt/adinsights/internal/tools"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cliApp := &cli.App{
		Name:    "adinsights",
		Usage:   "Advertising performance analysis tools for agents",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"ADINSIGHTS_CONFIG_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				return os.Setenv("ADINSIGHTS_CONFIG_FILE", path)
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			toolsCommand(),
			invokeCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.LogFormat())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP tool server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address (overrides config)",
				EnvVars: []string{"ADINSIGHTS_HTTP_ADDR"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger.Info("starting adinsights",
		zap.String("version", version),
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	if cfg.IsProduction() && !cfg.Auth.Enabled {
		logger.Warn("API key auth is disabled in production")
	}

	a := bootstrap(c.Context, cfg, logger)
	defer a.Close()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpserver.NewServer(&httpserver.Dependencies{
			Config:   cfg,
			Logger:   logger,
			Metrics:  a.metrics,
			Registry: a.registry,
			Checks:   a.checks,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// =============================================================================
// TOOLS COMMAND
// =============================================================================

func toolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tools",
		Usage: "Print the tool definitions as JSON",
		Action: func(c *cli.Context) error {
			return printJSON(c.App.Writer, tools.Definitions())
		},
	}
}

// =============================================================================
// INVOKE COMMAND
// =============================================================================

func invokeCommand() *cli.Command {
	return &cli.Command{
		Name:      "invoke",
		Usage:     "Run one tool and print its result",
		ArgsUsage: "<tool>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "args",
				Aliases: []string{"a"},
				Value:   "{}",
				Usage:   "Tool arguments as a JSON object, or - to read them from stdin",
			},
		},
		Action: runInvoke,
	}
}

func runInvoke(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("tool name is required", 2)
	}

	raw := []byte(c.String("args"))
	if c.String("args") == "-" {
		var err error
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read arguments: %w", err)
		}
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a := bootstrap(c.Context, cfg, logger)
	defer a.Close()

	res, err := a.registry.Invoke(c.Context, name, json.RawMessage(raw))
	if err != nil {
		_ = printJSON(c.App.Writer, tools.ErrorResult{Error: err.Error()})
		return cli.Exit("", 1)
	}
	return printJSON(c.App.Writer, res)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
