package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/savegress/vaxguard/internal/api"
	"github.com/savegress/vaxguard/internal/audit"
	"github.com/savegress/vaxguard/internal/config"
	"github.com/savegress/vaxguard/internal/rules"
	"github.com/savegress/vaxguard/internal/validation"
)

func main() {
	cfg := loadConfig()
	log := newLogger(cfg.Logging)

	log.Info().Str("mode", cfg.Validation.AlternateMode).Msg("starting VaxGuard")

	repo, err := loadRequirements(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load requirements")
	}

	mode := validation.ParseAlternateMode(cfg.Validation.AlternateMode)
	engine := validation.NewEngine(mode, log)

	auditLogger := audit.NewLogger(&cfg.Audit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := auditLogger.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start audit logger")
	}

	server := api.NewServer(cfg, engine, repo, auditLogger, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("VaxGuard API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down VaxGuard")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	auditLogger.Stop()

	log.Info().Msg("VaxGuard stopped")
}

func loadConfig() *config.Config {
	configPath := os.Getenv("VAXGUARD_CONFIG")
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err == nil {
			return cfg
		}
		fmt.Fprintf(os.Stderr, "failed to load config from %s: %v, using environment\n", configPath, err)
	}
	return config.LoadFromEnv()
}

func loadRequirements(cfg *config.Config, log zerolog.Logger) (*rules.Repository, error) {
	if cfg.Validation.RequirementsPath != "" {
		return rules.Load(cfg.Validation.RequirementsPath, log)
	}
	log.Info().Msg("no requirements file configured, using built-in defaults")
	return rules.NewRepository(rules.DefaultFile()), nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "vaxguard").Logger()
}
