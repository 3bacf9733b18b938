// Command server runs the HTTP terminal server: it supervises one PTY process
// per session identifier and serves the polling endpoint set.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/L1NNA/jupyter-http-terminal/api/handlers"
	"github.com/L1NNA/jupyter-http-terminal/internal/config"
	"github.com/L1NNA/jupyter-http-terminal/internal/db"
	"github.com/L1NNA/jupyter-http-terminal/internal/logger"
	"github.com/L1NNA/jupyter-http-terminal/internal/repository"
	"github.com/L1NNA/jupyter-http-terminal/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0755); err != nil {
		return err
	}
	if cfg.Server.RecordingDir != "" {
		if err := os.MkdirAll(cfg.Server.RecordingDir, 0755); err != nil {
			return err
		}
	}

	database, err := db.Open(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	manager := session.NewManager(
		repository.NewSessionRepository(database),
		session.Config{
			Command:      cfg.Server.Command,
			RecordingDir: cfg.Server.RecordingDir,
			BufferCap:    cfg.Server.BufferCap,
			MaxSessions:  cfg.Server.MaxSessions,
		},
		log,
	)
	defer manager.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.NewTerminalHandler(manager, log).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("terminal server listening",
			zap.String("addr", cfg.Server.Addr()),
			zap.String("command", cfg.Server.Command))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return manager.Close()
}
