// Package nl2sql turns natural-language questions into single SQL
// statements grounded on an introspected schema.
package nl2sql

import (
	"context"
	"fmt"

	"github.com/sqlbridge/sqlbridge/internal/dbconn"
)

type Request struct {
	NaturalLanguage string
	Database        string
	Dialect         dbconn.Dialect
	// Grounding is the rendered schema block the model must stay inside.
	Grounding string
	// Tables lists table names in introspection order; the first one is the
	// default target for rule-based generation.
	Tables []string
	// History carries prior "question -> sql" lines for the session.
	History []string
}

type Result struct {
	SQL   string
	Model string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Explainer produces a short business explanation of a result. It absorbs
// its own failures and always returns usable text.
type Explainer interface {
	Explain(ctx context.Context, question, resultSummary, database string) string
}

// NeutralExplanation is returned whenever explanation fails; explanation is
// non-essential and never surfaces an error.
const NeutralExplanation = "Unable to generate explanation for the results."

// GenerationError marks a model capability failure. It is never fatal to
// the pipeline; the orchestrator resolves it through the rule-based
// generator.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generate sql: %s: %v", e.Reason, e.Err)
	}
	return "generate sql: " + e.Reason
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
