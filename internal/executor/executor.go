// Package executor runs a single statement through a pooled client and
// normalizes the outcome into a dialect-agnostic result.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlbridge/sqlbridge/internal/dbconn"
	"github.com/sqlbridge/sqlbridge/internal/observability"
)

// ExecError marks a statement the backend rejected, carrying how long the
// attempt took. The original backend message is preserved via Unwrap.
type ExecError struct {
	Message string
	Elapsed time.Duration
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execute (%s): %s", e.Elapsed.Round(time.Millisecond), e.Message)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Result is the normalized outcome of one statement. Columns order is
// stable and is the key order for every row map. Rows is nil for write and
// DDL statements, which report AffectedRows only.
type Result struct {
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"data"`
	RowCount     int              `json:"row_count"`
	AffectedRows int64            `json:"affected_rows,omitempty"`
}

type Executor struct {
	Logger *slog.Logger
	// MaxRows caps how many rows a read statement returns. Zero means the
	// default of 1000.
	MaxRows int
}

// Run executes sqlText on a connection checked out from the client's pool.
// The connection is released on every exit path.
func (e *Executor) Run(ctx context.Context, client *dbconn.Client, sqlText string) (Result, error) {
	start := time.Now()
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return Result{}, &ExecError{Message: "empty statement", Elapsed: time.Since(start)}
	}

	conn, err := client.DB().Conn(ctx)
	if err != nil {
		return Result{}, e.fail(ctx, sqlText, start, err)
	}
	defer func() { _ = conn.Close() }()

	if !isReadStatement(sqlText) {
		res, err := conn.ExecContext(ctx, sqlText)
		if err != nil {
			return Result{}, e.fail(ctx, sqlText, start, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		observability.ObserveExecution(time.Since(start), false)
		return Result{AffectedRows: affected}, nil
	}

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, e.fail(ctx, sqlText, start, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, e.fail(ctx, sqlText, start, err)
	}

	maxRows := e.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}

	data := make([]map[string]any, 0)
	for rows.Next() {
		if len(data) >= maxRows {
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, e.fail(ctx, sqlText, start, err)
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, e.fail(ctx, sqlText, start, err)
	}

	observability.ObserveExecution(time.Since(start), false)
	return Result{Columns: columns, Rows: data, RowCount: len(data)}, nil
}

func (e *Executor) fail(ctx context.Context, sqlText string, start time.Time, err error) error {
	elapsed := time.Since(start)
	observability.ObserveExecution(elapsed, true)
	if e.Logger != nil {
		e.Logger.WarnContext(ctx, "statement rejected",
			slog.String("sql", sqlText),
			slog.String("elapsed", elapsed.String()),
			slog.Any("error", err),
		)
	}
	return &ExecError{Message: err.Error(), Elapsed: elapsed, Err: err}
}

func isReadStatement(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	for _, prefix := range []string{"select", "with", "show", "describe", "desc", "explain"} {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

// normalizeValue converts driver values to JSON-stable scalars. Dates and
// timestamps leave the executor as ISO-8601 strings.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format("2006-01-02")
		}
		return typed.Format(time.RFC3339)
	default:
		return typed
	}
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
