package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlbridge/sqlbridge/internal/api"
	"github.com/sqlbridge/sqlbridge/internal/config"
	"github.com/sqlbridge/sqlbridge/internal/dbconn"
	"github.com/sqlbridge/sqlbridge/internal/executor"
	"github.com/sqlbridge/sqlbridge/internal/nl2sql"
	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/orchestrator"
	"github.com/sqlbridge/sqlbridge/internal/schema"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlbridge-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	profile, err := defaultProfile(cfg)
	if err != nil {
		logger.Error("invalid backend configuration", slog.Any("error", err))
		os.Exit(1)
	}

	factory := &dbconn.Factory{
		Pool: dbconn.PoolConfig{
			MaxOpen:        cfg.Pool.MaxOpen,
			MaxOverflow:    cfg.Pool.MaxOverflow,
			MaxIdle:        cfg.Pool.MaxIdle,
			RecycleAge:     cfg.Pool.RecycleAge,
			ConnectTimeout: cfg.Pool.ConnectTimeout,
			ReadTimeout:    cfg.Pool.ReadTimeout,
			WriteTimeout:   cfg.Pool.WriteTimeout,
		},
		Logger: logger,
	}
	connector := dbconn.NewConnector(factory, profile)
	defer func() { _ = connector.Close() }()

	var generator nl2sql.Generator
	var explainer nl2sql.Explainer
	if cfg.AI.Enabled {
		openAI, err := nl2sql.NewOpenAIGenerator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxOutputTokens,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize sql generator", slog.Any("error", err))
			os.Exit(1)
		}
		generator = openAI
		explainer = openAI
	}

	service := &orchestrator.Service{
		Factory:   factory,
		Default:   connector,
		Inspector: &schema.Inspector{Logger: logger},
		Cache:     schema.NewCache(),
		Generator: generator,
		Fallback:  nl2sql.FallbackGenerator{},
		Explainer: explainer,
		Executor:  &executor.Executor{Logger: logger, MaxRows: cfg.Backend.MaxRows},
		History:   orchestrator.NewHistory(cfg.History.Limit),
		Registry:  orchestrator.NewConnRegistry(),
		Logger:    logger,

		ConfiguredDatabases: cfg.Backend.DefaultDatabases,
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:  logger,
		Service: service,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func defaultProfile(cfg config.Config) (dbconn.Profile, error) {
	dialect, err := dbconn.ParseDialect(cfg.Backend.Dialect)
	if err != nil {
		return dbconn.Profile{}, err
	}
	transport, err := dbconn.ParseTransportSecurity(cfg.Backend.TransportSecurity)
	if err != nil {
		return dbconn.Profile{}, err
	}
	return dbconn.Profile{
		Dialect:           dialect,
		Host:              cfg.Backend.Host,
		Port:              cfg.Backend.Port,
		User:              cfg.Backend.User,
		Secret:            cfg.Backend.Password,
		Database:          cfg.Backend.Database,
		TransportSecurity: transport,
		CAFile:            cfg.Backend.CAFile,
	}, nil
}
