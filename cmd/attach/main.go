// Command attach connects the local terminal to a remote session served by
// the terminal server, mirroring its PTY through the polling protocol.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/L1NNA/jupyter-http-terminal/internal/config"
	"github.com/L1NNA/jupyter-http-terminal/internal/driver"
	"github.com/L1NNA/jupyter-http-terminal/internal/identity"
	"github.com/L1NNA/jupyter-http-terminal/internal/logger"
	"github.com/L1NNA/jupyter-http-terminal/internal/term"
	"github.com/L1NNA/jupyter-http-terminal/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	serverURL := flag.String("url", "", "server base URL (overrides config)")
	sessionID := flag.String("session", "", "attach to an explicit session id instead of the stored one")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Attach.ServerURL = *serverURL
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	sid := *sessionID
	if sid == "" {
		provider := identity.NewProvider(&identity.FileStore{Path: stateFilePath(cfg)}, log)
		sid = provider.GetOrCreate()
	}

	if err := run(cfg, log, sid); err != nil {
		log.Error("attach failed", zap.Error(err))
		os.Exit(1)
	}
}

// stateFilePath resolves where the session identifier lives between runs.
func stateFilePath(cfg *config.Config) string {
	if cfg.Attach.StateFile != "" {
		return cfg.Attach.StateFile
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ".jupyter-http-terminal-session"
	}
	return filepath.Join(cacheDir, "jupyter-http-terminal", "session-id")
}

func run(cfg *config.Config, log *logger.Logger, sid string) error {
	terminal, err := term.Open(log)
	if err != nil {
		return err
	}
	defer terminal.Restore()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	client := transport.NewClient(cfg.Attach.ServerURL, sid,
		transport.WithTimeout(cfg.Attach.RequestTimeout))

	// The "close this tab" action: restore the terminal and unwind main.
	closeHost := func() error {
		terminal.Restore()
		stop()
		return nil
	}

	drv := driver.New(client, terminal, closeHost, driver.Config{
		PollInterval: cfg.Attach.PollInterval,
		GraceDelay:   cfg.Attach.GraceDelay,
		Logger:       log.WithSession(sid),
	})

	if err := drv.Start(ctx); err != nil {
		return err
	}

	go terminal.WatchResize(ctx, func(rows, cols int) {
		drv.HandleResize(ctx, rows, cols)
	})
	go terminal.InputLoop(ctx, func(input string) {
		drv.HandleInput(ctx, input)
	})

	select {
	case <-drv.Done():
	case <-ctx.Done():
	}
	drv.Stop()
	return nil
}
