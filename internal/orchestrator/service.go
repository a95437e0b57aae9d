package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sqlbridge/sqlbridge/internal/dbconn"
	"github.com/sqlbridge/sqlbridge/internal/executor"
	"github.com/sqlbridge/sqlbridge/internal/nl2sql"
	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/schema"
)

// ClientSource yields pooled clients for the configured default backend.
// *dbconn.Connector is the production implementation.
type ClientSource interface {
	Client(ctx context.Context, database string) (*dbconn.Client, error)
	Ping(ctx context.Context) error
}

// Service runs the natural-language query pipeline. Generator may be nil
// when no model is configured; every question then resolves through the
// rule-based fallback.
type Service struct {
	Factory   *dbconn.Factory
	Default   ClientSource
	Inspector *schema.Inspector
	Cache     *schema.Cache
	Generator nl2sql.Generator
	Fallback  nl2sql.Generator
	Explainer nl2sql.Explainer
	Executor  *executor.Executor
	History   *History
	Registry  *ConnRegistry
	Logger    *slog.Logger
	// ConfiguredDatabases, when set, is served verbatim instead of live
	// enumeration. Used when the service account cannot list databases.
	ConfiguredDatabases []string
}

type QueryRequest struct {
	Question  string
	Database  string
	SessionID string
	// Profile overrides the service's default backend for this session.
	Profile *dbconn.Profile
}

type QueryResponse struct {
	SessionID   string
	Database    string
	SQL         string
	Model       string
	Explanation string
	Result      executor.Result
	Elapsed     time.Duration
}

type HealthStatus struct {
	DatabaseReachable bool
	ModelConfigured   bool
}

// Query resolves a backend client, grounds the question on the live
// schema, generates one statement, executes it, and explains the result.
// When execution fails the returned response still carries the generated
// SQL so callers can show what was attempted.
func (s *Service) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	resp := QueryResponse{SessionID: req.SessionID, Database: req.Database}

	client, release, err := s.clientFor(ctx, req)
	if err != nil {
		return resp, err
	}
	defer release()

	descriptor, err := s.describe(ctx, client, req.Database)
	if err != nil {
		return resp, err
	}

	genReq := nl2sql.Request{
		NaturalLanguage: req.Question,
		Database:        req.Database,
		Dialect:         client.Dialect(),
		Grounding:       descriptor.Grounding(),
		Tables:          descriptor.TableNames(),
		History:         s.History.Recent(req.SessionID, req.Database),
	}

	result := s.generate(ctx, genReq)
	resp.SQL = result.SQL
	resp.Model = result.Model

	start := time.Now()
	execResult, err := s.Executor.Run(ctx, client, result.SQL)
	resp.Elapsed = time.Since(start)
	if err != nil {
		return resp, err
	}
	resp.Result = execResult

	resp.Explanation = s.explain(ctx, req.Question, execResult, req.Database)
	s.History.Add(req.SessionID, req.Database, req.Question, result.SQL)
	return resp, nil
}

// Schema returns the introspected descriptor for a database, served from
// cache when warm. A session with a registered custom connection is
// introspected through that backend; everything else uses the default.
func (s *Service) Schema(ctx context.Context, database, session string) (schema.Descriptor, error) {
	client, release, err := s.clientFor(ctx, QueryRequest{Database: database, SessionID: session})
	if err != nil {
		return schema.Descriptor{}, err
	}
	defer release()
	return s.describe(ctx, client, database)
}

// Databases enumerates user databases on the default backend, with system
// databases filtered out.
func (s *Service) Databases(ctx context.Context) ([]string, error) {
	if len(s.ConfiguredDatabases) > 0 {
		return slices.Clone(s.ConfiguredDatabases), nil
	}
	client, err := s.Default.Client(ctx, "")
	if err != nil {
		return nil, err
	}
	return s.Inspector.ListDatabases(ctx, client)
}

// ClearSchemaCache drops the cached descriptor for one database, or every
// descriptor when database is empty.
func (s *Service) ClearSchemaCache(database string) {
	if database == "" {
		s.Cache.InvalidateAll()
		return
	}
	s.Cache.Invalidate(database)
}

// ClearHistory forgets the session's prior exchanges and its registered
// custom connection. Returns how many exchanges were dropped.
func (s *Service) ClearHistory(session string) int {
	s.Registry.Delete(session)
	return s.History.Clear(session)
}

// Health never fails; it reports reachability of the default backend and
// whether a generation model is configured.
func (s *Service) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{ModelConfigured: s.Generator != nil}
	if s.Default != nil {
		status.DatabaseReachable = s.Default.Ping(ctx) == nil
	}
	return status
}

// clientFor picks the backend for one request: an explicit profile wins
// and is remembered for the session, a remembered profile comes next, and
// the default connector is last. The release func closes ephemeral pools
// and is a no-op for the shared default.
func (s *Service) clientFor(ctx context.Context, req QueryRequest) (*dbconn.Client, func(), error) {
	noop := func() {}

	profile := req.Profile
	if profile == nil {
		if remembered, ok := s.Registry.Get(req.SessionID); ok {
			profile = &remembered
		}
	}
	if profile != nil {
		client, err := s.Factory.Resolve(ctx, *profile, req.Database)
		if err != nil {
			return nil, noop, err
		}
		s.Registry.Put(req.SessionID, *profile)
		return client, func() { _ = client.Close() }, nil
	}

	client, err := s.Default.Client(ctx, req.Database)
	if err != nil {
		return nil, noop, err
	}
	return client, noop, nil
}

func (s *Service) describe(ctx context.Context, client *dbconn.Client, database string) (schema.Descriptor, error) {
	key := schema.Key{Database: database, Dialect: client.Dialect()}
	return s.Cache.Get(key, func() (schema.Descriptor, error) {
		return s.Inspector.Describe(ctx, client, database)
	})
}

func (s *Service) generate(ctx context.Context, req nl2sql.Request) nl2sql.Result {
	if s.Generator != nil {
		result, err := s.Generator.Generate(ctx, req)
		if err == nil {
			observability.ObserveGeneration("model")
			return result
		}
		s.Logger.Warn("model generation failed, using rule-based fallback",
			slog.String("database", req.Database), slog.Any("error", err))
	}

	observability.ObserveFallback()
	observability.ObserveGeneration("fallback")
	result, _ := s.Fallback.Generate(ctx, req)
	return result
}

func (s *Service) explain(ctx context.Context, question string, result executor.Result, database string) string {
	if s.Explainer == nil {
		return nl2sql.NeutralExplanation
	}
	return s.Explainer.Explain(ctx, question, resultSummary(result), database)
}

// resultSummary condenses an execution result into a prompt-sized line:
// row count, column names, and up to three sample rows.
func resultSummary(result executor.Result) string {
	if result.Rows == nil {
		return fmt.Sprintf("Statement affected %d rows.", result.AffectedRows)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows returned.", result.RowCount)
	if len(result.Columns) > 0 {
		fmt.Fprintf(&b, " Columns: %s.", strings.Join(result.Columns, ", "))
	}
	if len(result.Rows) > 0 {
		sample := result.Rows
		if len(sample) > 3 {
			sample = sample[:3]
		}
		if encoded, err := json.Marshal(sample); err == nil {
			fmt.Fprintf(&b, " Sample: %s", encoded)
		}
	}
	return b.String()
}
