package dbconn

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/sqlbridge/sqlbridge/internal/observability"
)

// PoolConfig bounds every pool the factory builds. All values are finite;
// a zero value falls back to the matching default below.
type PoolConfig struct {
	MaxOpen        int
	MaxOverflow    int
	MaxIdle        int
	RecycleAge     time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxOpen <= 0 {
		c.MaxOpen = 5
	}
	if c.MaxOverflow < 0 {
		c.MaxOverflow = 0
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = c.MaxOpen
	}
	if c.RecycleAge <= 0 {
		c.RecycleAge = time.Hour
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	return c
}

// Client owns one bounded connection pool for exactly one (profile,
// database) pair.
type Client struct {
	db       *sql.DB
	dialect  Dialect
	database string
	target   string
}

// NewClient wraps an already opened pool. The factory uses it internally;
// tests use it to inject sqlmock pools.
func NewClient(db *sql.DB, dialect Dialect, database string) *Client {
	return &Client{db: db, dialect: dialect, database: database}
}

func (c *Client) DB() *sql.DB      { return c.db }
func (c *Client) Dialect() Dialect { return c.dialect }
func (c *Client) Database() string { return c.database }
func (c *Client) Close() error     { return c.db.Close() }

func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return &ConnectError{Target: c.target, Err: err}
	}
	return nil
}

// Factory builds pooled clients from connection profiles.
type Factory struct {
	Pool   PoolConfig
	Logger *slog.Logger
}

// Resolve validates the profile, builds the dialect-specific descriptor and
// opens a bounded pool for the (profile, database) pair. The first
// connection is validated with a time-boxed ping before the client is
// handed out.
func (f *Factory) Resolve(ctx context.Context, profile Profile, database string) (*Client, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	pool := f.Pool.withDefaults()

	var (
		dsn string
		err error
	)
	switch profile.Dialect {
	case DialectSQLServer:
		dsn, err = sqlserverDSN(profile, database, pool)
	default:
		dsn, err = mysqlDSN(profile, database, pool)
	}
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(profile.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, &ConnectError{Target: profile.Redacted(), Err: err}
	}
	db.SetMaxOpenConns(pool.MaxOpen + pool.MaxOverflow)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.RecycleAge)
	db.SetConnMaxIdleTime(pool.RecycleAge)

	pingCtx, cancel := context.WithTimeout(ctx, pool.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &ConnectError{Target: profile.Redacted(), Err: err}
	}

	if f.Logger != nil {
		f.Logger.Info("connection pool built",
			slog.String("target", profile.Redacted()),
			slog.String("database", database),
		)
	}
	observability.ObservePoolBuild(string(profile.Dialect))

	return &Client{db: db, dialect: profile.Dialect, database: database, target: profile.Redacted()}, nil
}
