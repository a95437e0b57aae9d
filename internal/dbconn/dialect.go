package dbconn

import (
	"fmt"
	"strings"
)

// Dialect is the closed set of supported SQL backend families.
type Dialect string

const (
	DialectMySQL     Dialect = "mysql"
	DialectSQLServer Dialect = "sqlserver"
)

func ParseDialect(raw string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(raw))) {
	case DialectMySQL:
		return DialectMySQL, nil
	case DialectSQLServer:
		return DialectSQLServer, nil
	default:
		return "", &ConfigError{Field: "dialect", Reason: fmt.Sprintf("%q is not supported (mysql, sqlserver)", raw)}
	}
}

func (d Dialect) DriverName() string {
	if d == DialectSQLServer {
		return "sqlserver"
	}
	return "mysql"
}

func (d Dialect) DefaultPort() int {
	if d == DialectSQLServer {
		return 1433
	}
	return 3306
}

// SystemDatabases is the backend catalog denylist excluded from database
// enumeration.
func (d Dialect) SystemDatabases() []string {
	if d == DialectSQLServer {
		return []string{"master", "tempdb", "model", "msdb"}
	}
	return []string{"information_schema", "mysql", "performance_schema", "sys", "innodb", "tmp"}
}

// QuoteIdent quotes an identifier with the dialect's quoting characters so
// names with spaces or reserved words stay valid.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectSQLServer {
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// LimitSelect renders a row-limited select with the dialect's limiting
// syntax (TOP for SQL Server, LIMIT otherwise).
func (d Dialect) LimitSelect(selectList, table string, limit int) string {
	if d == DialectSQLServer {
		return fmt.Sprintf("SELECT TOP %d %s FROM %s", limit, selectList, d.QuoteIdent(table))
	}
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", selectList, d.QuoteIdent(table), limit)
}

// RowLimitHint and QuoteHint describe the dialect's syntax for prompt
// construction.
func (d Dialect) RowLimitHint() string {
	if d == DialectSQLServer {
		return "Use TOP (n) after SELECT for row limits; LIMIT is not valid"
	}
	return "Use LIMIT for row limits"
}

func (d Dialect) QuoteHint() string {
	if d == DialectSQLServer {
		return "Quote identifiers containing spaces or special characters with square brackets"
	}
	return "Quote identifiers containing spaces or special characters with backticks"
}
