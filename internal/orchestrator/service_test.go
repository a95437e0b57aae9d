package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlbridge/sqlbridge/internal/dbconn"
	"github.com/sqlbridge/sqlbridge/internal/executor"
	"github.com/sqlbridge/sqlbridge/internal/nl2sql"
	"github.com/sqlbridge/sqlbridge/internal/schema"
)

const tablesQuery = `
SELECT TABLE_NAME
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

const columnsQuery = `
SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

func profileFixture() dbconn.Profile {
	return dbconn.Profile{
		Dialect: dbconn.DialectMySQL,
		Host:    "db.example.com",
		User:    "svc",
		Secret:  "secret",
	}
}

type fixedSource struct {
	client  *dbconn.Client
	pingErr error
}

func (f *fixedSource) Client(_ context.Context, _ string) (*dbconn.Client, error) {
	if f.client == nil {
		return nil, &dbconn.ConnectError{Target: "test", Err: errors.New("no client")}
	}
	return f.client, nil
}

func (f *fixedSource) Ping(_ context.Context) error { return f.pingErr }

type stubGenerator struct {
	result nl2sql.Result
	err    error
	calls  int
}

func (g *stubGenerator) Generate(_ context.Context, _ nl2sql.Request) (nl2sql.Result, error) {
	g.calls++
	return g.result, g.err
}

type recordingExplainer struct {
	summary string
}

func (e *recordingExplainer) Explain(_ context.Context, _, resultSummary, _ string) string {
	e.summary = resultSummary
	return "Looks healthy."
}

func newTestService(t *testing.T, generator nl2sql.Generator) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := dbconn.NewClient(db, dbconn.DialectMySQL, "shop")
	return &Service{
		Default:   &fixedSource{client: client},
		Inspector: &schema.Inspector{Logger: logger},
		Cache:     schema.NewCache(),
		Generator: generator,
		Fallback:  nl2sql.FallbackGenerator{},
		Executor:  &executor.Executor{Logger: logger},
		History:   NewHistory(10),
		Registry:  NewConnRegistry(),
		Logger:    logger,
	}, mock
}

func expectSchemaIntrospection(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta(tablesQuery)).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("users"))
	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("shop", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_KEY"}).
			AddRow("id", "int", "NO", "PRI").
			AddRow("name", "varchar(100)", "YES", ""))
}

func TestQueryModelGeneratedPath(t *testing.T) {
	gen := &stubGenerator{result: nl2sql.Result{SQL: "SELECT name FROM users LIMIT 10", Model: "gpt-5"}}
	svc, mock := newTestService(t, gen)
	explainer := &recordingExplainer{}
	svc.Explainer = explainer

	expectSchemaIntrospection(mock)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM users LIMIT 10")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Ada").AddRow("Grace"))

	resp, err := svc.Query(context.Background(), QueryRequest{
		Question:  "list user names",
		Database:  "shop",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.SQL != "SELECT name FROM users LIMIT 10" || resp.Model != "gpt-5" {
		t.Fatalf("unexpected generation %q model=%q", resp.SQL, resp.Model)
	}
	if resp.Result.RowCount != 2 {
		t.Fatalf("unexpected row count %d", resp.Result.RowCount)
	}
	if resp.Explanation != "Looks healthy." {
		t.Fatalf("unexpected explanation %q", resp.Explanation)
	}
	if explainer.summary == "" {
		t.Fatal("expected a result summary passed to the explainer")
	}

	if lines := svc.History.Recent("s1", "shop"); len(lines) != 1 {
		t.Fatalf("expected one history entry, got %v", lines)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueryFallsBackWhenModelFails(t *testing.T) {
	gen := &stubGenerator{err: &nl2sql.GenerationError{Reason: "model unavailable"}}
	svc, mock := newTestService(t, gen)

	expectSchemaIntrospection(mock)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS total FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(int64(42)))

	resp, err := svc.Query(context.Background(), QueryRequest{
		Question:  "how many users are there",
		Database:  "shop",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Model != nl2sql.FallbackModel {
		t.Fatalf("expected fallback model, got %q", resp.Model)
	}
	if resp.SQL != "SELECT COUNT(*) AS total FROM `users`" {
		t.Fatalf("unexpected sql %q", resp.SQL)
	}
	if resp.Explanation != nl2sql.NeutralExplanation {
		t.Fatalf("unexpected explanation %q", resp.Explanation)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueryWithoutModelUsesFallback(t *testing.T) {
	svc, mock := newTestService(t, nil)

	expectSchemaIntrospection(mock)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` LIMIT 10")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ada"))

	resp, err := svc.Query(context.Background(), QueryRequest{
		Question:  "show me the data",
		Database:  "shop",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Model != nl2sql.FallbackModel {
		t.Fatalf("expected fallback model, got %q", resp.Model)
	}
}

func TestQueryExecutionErrorCarriesGeneratedSQL(t *testing.T) {
	gen := &stubGenerator{result: nl2sql.Result{SQL: "SELECT missing FROM users", Model: "gpt-5"}}
	svc, mock := newTestService(t, gen)

	expectSchemaIntrospection(mock)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT missing FROM users")).
		WillReturnError(errors.New("Unknown column 'missing' in 'field list'"))

	resp, err := svc.Query(context.Background(), QueryRequest{
		Question:  "select something odd",
		Database:  "shop",
		SessionID: "s1",
	})
	var execErr *executor.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecError, got %v", err)
	}
	if resp.SQL != "SELECT missing FROM users" {
		t.Fatalf("expected attempted sql in response, got %q", resp.SQL)
	}
	if lines := svc.History.Recent("s1", "shop"); lines != nil {
		t.Fatalf("failed query must not enter history, got %v", lines)
	}
}

func TestQueryReusesCachedSchema(t *testing.T) {
	gen := &stubGenerator{result: nl2sql.Result{SQL: "SELECT 1", Model: "gpt-5"}}
	svc, mock := newTestService(t, gen)

	expectSchemaIntrospection(mock)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))

	for i := 0; i < 2; i++ {
		if _, err := svc.Query(context.Background(), QueryRequest{
			Question:  "ping",
			Database:  "shop",
			SessionID: "s1",
		}); err != nil {
			t.Fatalf("Query %d: %v", i, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("introspection should have run once: %v", err)
	}
}

func TestClearSchemaCache(t *testing.T) {
	svc, _ := newTestService(t, nil)
	svc.Cache.Get(schema.Key{Database: "shop", Dialect: dbconn.DialectMySQL}, func() (schema.Descriptor, error) {
		return schema.Descriptor{Database: "shop"}, nil
	})
	svc.ClearSchemaCache("shop")
	if svc.Cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", svc.Cache.Len())
	}
}

func TestClearHistoryForgetsRegisteredConnection(t *testing.T) {
	svc, _ := newTestService(t, nil)
	svc.History.Add("s1", "shop", "q", "SELECT 1")
	svc.Registry.Put("s1", profileFixture())

	if removed := svc.ClearHistory("s1"); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := svc.Registry.Get("s1"); ok {
		t.Fatal("expected registered connection forgotten")
	}
}

func TestSchemaIntrospectsDefaultBackend(t *testing.T) {
	svc, mock := newTestService(t, nil)
	expectSchemaIntrospection(mock)

	descriptor, err := svc.Schema(context.Background(), "shop", "")
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if len(descriptor.Tables) != 1 || descriptor.Tables[0].Name != "users" {
		t.Fatalf("unexpected descriptor %+v", descriptor)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDatabasesPrefersConfiguredList(t *testing.T) {
	svc, _ := newTestService(t, nil)
	svc.ConfiguredDatabases = []string{"crm", "shop"}

	databases, err := svc.Databases(context.Background())
	if err != nil {
		t.Fatalf("Databases: %v", err)
	}
	if len(databases) != 2 || databases[0] != "crm" {
		t.Fatalf("unexpected databases %v", databases)
	}
}

func TestHealthReportsBackendAndModel(t *testing.T) {
	svc, _ := newTestService(t, &stubGenerator{})
	status := svc.Health(context.Background())
	if !status.DatabaseReachable || !status.ModelConfigured {
		t.Fatalf("unexpected status %+v", status)
	}

	svc.Default = &fixedSource{pingErr: errors.New("down")}
	svc.Generator = nil
	status = svc.Health(context.Background())
	if status.DatabaseReachable || status.ModelConfigured {
		t.Fatalf("unexpected degraded status %+v", status)
	}
}
