package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlbridge/sqlbridge/internal/dbconn"
)

type Inspector struct {
	Logger *slog.Logger
}

// Describe introspects the target database. Column introspection is best
// effort: a table whose column query fails maps to an empty column list and
// inspection continues. Only a failing table enumeration aborts with a
// wrapped *Error.
func (i *Inspector) Describe(ctx context.Context, client *dbconn.Client, database string) (Descriptor, error) {
	descriptor := Descriptor{Database: database, Dialect: client.Dialect()}

	tables, err := i.listTables(ctx, client, database)
	if err != nil {
		return Descriptor{}, &Error{Database: database, Err: err}
	}

	for _, tableName := range tables {
		columns, err := i.listColumns(ctx, client, database, tableName)
		if err != nil {
			if i.Logger != nil {
				i.Logger.Warn("column introspection failed",
					slog.String("database", database),
					slog.String("table", tableName),
					slog.Any("error", err),
				)
			}
			columns = []Column{}
		}
		descriptor.Tables = append(descriptor.Tables, Table{Name: tableName, Columns: columns})
	}
	return descriptor, nil
}

// ListDatabases enumerates user databases, excluding the backend's system
// catalogs.
func (i *Inspector) ListDatabases(ctx context.Context, client *dbconn.Client) ([]string, error) {
	var query string
	switch client.Dialect() {
	case dbconn.DialectSQLServer:
		query = fmt.Sprintf(`
SELECT name
FROM sys.databases
WHERE name NOT IN %s AND state = 0
ORDER BY name`, notInList(client.Dialect().SystemDatabases()))
	default:
		query = fmt.Sprintf(`
SELECT schema_name
FROM information_schema.schemata
WHERE schema_name NOT IN %s
ORDER BY schema_name`, notInList(client.Dialect().SystemDatabases()))
	}

	rows, err := client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, &Error{Database: "", Err: fmt.Errorf("list databases: %w", err)}
	}
	defer func() { _ = rows.Close() }()

	databases := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &Error{Database: "", Err: fmt.Errorf("scan database name: %w", err)}
		}
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Database: "", Err: fmt.Errorf("iterate database names: %w", err)}
	}
	return databases, nil
}

func (i *Inspector) listTables(ctx context.Context, client *dbconn.Client, database string) ([]string, error) {
	var query string
	switch client.Dialect() {
	case dbconn.DialectSQLServer:
		query = `
SELECT TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_CATALOG = @p1 AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`
	default:
		query = `
SELECT TABLE_NAME
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`
	}

	rows, err := client.DB().QueryContext(ctx, query, database)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}
	return tables, nil
}

func (i *Inspector) listColumns(ctx context.Context, client *dbconn.Client, database, table string) ([]Column, error) {
	switch client.Dialect() {
	case dbconn.DialectSQLServer:
		return i.listColumnsSQLServer(ctx, client, table)
	default:
		return i.listColumnsMySQL(ctx, client, database, table)
	}
}

func (i *Inspector) listColumnsMySQL(ctx context.Context, client *dbconn.Client, database, table string) ([]Column, error) {
	rows, err := client.DB().QueryContext(ctx, `
SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`, database, table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var name, dataType, nullable, columnKey string
		if err := rows.Scan(&name, &dataType, &nullable, &columnKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, Column{
			Name:       name,
			DataType:   dataType,
			Nullable:   strings.EqualFold(nullable, "YES"),
			PrimaryKey: columnKey == "PRI",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (i *Inspector) listColumnsSQLServer(ctx context.Context, client *dbconn.Client, table string) ([]Column, error) {
	rows, err := client.DB().QueryContext(ctx, `
SELECT c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE,
       CASE WHEN k.COLUMN_NAME IS NULL THEN 0 ELSE 1 END AS IS_PRIMARY_KEY
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN (
    SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
    FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
      ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
    WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
) k ON k.TABLE_NAME = c.TABLE_NAME AND k.COLUMN_NAME = c.COLUMN_NAME
WHERE c.TABLE_NAME = @p1
ORDER BY c.ORDINAL_POSITION`, table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var name, dataType, nullable string
		var primaryKey int
		if err := rows.Scan(&name, &dataType, &nullable, &primaryKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, Column{
			Name:       name,
			DataType:   dataType,
			Nullable:   strings.EqualFold(nullable, "YES"),
			PrimaryKey: primaryKey == 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// notInList renders a fixed denylist as a SQL IN list. Inputs are compile
// time constants, never caller data.
func notInList(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		quoted = append(quoted, "'"+name+"'")
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}
