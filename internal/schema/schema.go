// Package schema introspects a connected backend for table and column
// metadata and caches the result per (database, dialect) key.
package schema

import (
	"fmt"
	"strings"

	"github.com/sqlbridge/sqlbridge/internal/dbconn"
)

type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Descriptor is an immutable snapshot of one database's tables. Tables
// preserves introspection order.
type Descriptor struct {
	Database string
	Dialect  dbconn.Dialect
	Tables   []Table
}

func (d Descriptor) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		names = append(names, table.Name)
	}
	return names
}

// Grounding renders the descriptor as prompt text: one block per table in
// introspection order, listing name, type, primary-key flag and
// nullability.
func (d Descriptor) Grounding() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database: %s\n\nACTUAL SCHEMA - Use ONLY these tables and columns:\n", d.Database)
	for _, table := range d.Tables {
		fmt.Fprintf(&b, "\nTable: %s\nColumns:\n", table.Name)
		for _, col := range table.Columns {
			keyInfo := ""
			if col.PrimaryKey {
				keyInfo = " (PRIMARY KEY)"
			}
			nullInfo := " (NOT NULL)"
			if col.Nullable {
				nullInfo = " (NULLABLE)"
			}
			fmt.Fprintf(&b, "  - %s (%s)%s%s\n", col.Name, col.DataType, keyInfo, nullInfo)
		}
	}
	return b.String()
}

// Error wraps an introspection failure with its database.
type Error struct {
	Database string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema %s: %v", e.Database, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
