// Package api exposes the query pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlbridge/sqlbridge/internal/config"
	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/orchestrator"
	"github.com/sqlbridge/sqlbridge/internal/schema"
)

// Service is the pipeline surface the handlers call.
// *orchestrator.Service is the production implementation.
type Service interface {
	Query(ctx context.Context, req orchestrator.QueryRequest) (orchestrator.QueryResponse, error)
	Schema(ctx context.Context, database, session string) (schema.Descriptor, error)
	Databases(ctx context.Context) ([]string, error)
	ClearSchemaCache(database string)
	ClearHistory(session string) int
	Health(ctx context.Context) orchestrator.HealthStatus
}

type Dependencies struct {
	Logger  *slog.Logger
	Service Service
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(cfg, deps, w, r)
	})
	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})
	mux.HandleFunc("GET /v1/schema/{database}", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	mux.HandleFunc("GET /v1/databases", func(w http.ResponseWriter, r *http.Request) {
		handleDatabases(deps, w, r)
	})
	mux.HandleFunc("POST /v1/schema/cache/clear", func(w http.ResponseWriter, r *http.Request) {
		handleSchemaCacheClear(deps, w, r)
	})
	mux.HandleFunc("POST /v1/history/clear", func(w http.ResponseWriter, r *http.Request) {
		handleHistoryClear(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"success":    false,
		"error_code": code,
		"message":    message,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
