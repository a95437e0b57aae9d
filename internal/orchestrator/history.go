// Package orchestrator wires connection resolution, schema grounding, SQL
// generation, and execution into the query pipeline the API exposes.
package orchestrator

import (
	"fmt"
	"sync"
)

const defaultHistoryLimit = 10

type historyKey struct {
	Session  string
	Database string
}

// History keeps a bounded FIFO of question/SQL pairs per session and
// database. When the bound is reached the oldest entry is evicted.
type History struct {
	mu    sync.Mutex
	limit int
	items map[historyKey][]HistoryEntry
}

type HistoryEntry struct {
	Question string
	SQL      string
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{limit: limit, items: make(map[historyKey][]HistoryEntry)}
}

func (h *History) Add(session, database, question, sql string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := historyKey{Session: session, Database: database}
	entries := append(h.items[key], HistoryEntry{Question: question, SQL: sql})
	if len(entries) > h.limit {
		entries = entries[len(entries)-h.limit:]
	}
	h.items[key] = entries
}

// Recent renders the session's prior exchanges oldest-first as
// "question -> sql" lines for prompt context.
func (h *History) Recent(session, database string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.items[historyKey{Session: session, Database: database}]
	if len(entries) == 0 {
		return nil
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s -> %s", entry.Question, entry.SQL))
	}
	return lines
}

// Clear drops every exchange recorded for the session across all
// databases.
func (h *History) Clear(session string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for key, entries := range h.items {
		if key.Session == session {
			removed += len(entries)
			delete(h.items, key)
		}
	}
	return removed
}
