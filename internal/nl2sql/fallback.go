package nl2sql

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FallbackModel identifies rule-based generation in responses.
const FallbackModel = "rule-based"

const defaultRowLimit = 10

var rowLimitPattern = regexp.MustCompile(`(?i)\b(?:top|first)\s+(\d{1,4})\b`)

// FallbackGenerator is the deterministic second stage of the generation
// pipeline. It pattern-matches the question for salient intents and always
// produces a syntactically valid statement; it never fails.
type FallbackGenerator struct{}

func (FallbackGenerator) Generate(_ context.Context, req Request) (Result, error) {
	table := pickTable(req)
	if table == "" {
		// Nothing introspected; still return a valid statement.
		return Result{SQL: "SELECT 1", Model: FallbackModel}, nil
	}

	question := strings.ToLower(req.NaturalLanguage)
	switch {
	case strings.Contains(question, "how many") || strings.Contains(question, "count"):
		return Result{
			SQL:   fmt.Sprintf("SELECT COUNT(*) AS total FROM %s", req.Dialect.QuoteIdent(table)),
			Model: FallbackModel,
		}, nil
	default:
		limit := defaultRowLimit
		if match := rowLimitPattern.FindStringSubmatch(req.NaturalLanguage); match != nil {
			if n, err := strconv.Atoi(match[1]); err == nil && n > 0 {
				limit = n
			}
		}
		return Result{SQL: req.Dialect.LimitSelect("*", table, limit), Model: FallbackModel}, nil
	}
}

// pickTable prefers a table the question mentions, else the first table in
// introspection order.
func pickTable(req Request) string {
	if len(req.Tables) == 0 {
		return ""
	}
	question := strings.ToLower(req.NaturalLanguage)
	for _, table := range req.Tables {
		if strings.Contains(question, strings.ToLower(table)) {
			return table
		}
	}
	return req.Tables[0]
}
