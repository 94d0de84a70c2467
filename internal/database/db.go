package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"napdiary/internal/config"
)

const _connectTimeout = 5 * time.Second

// DB wraps the database connection with dialect support.
// Queries are written with ? placeholders and rewritten per dialect.
type DB struct {
	*sqlx.DB
	Dialect Dialect
	Builder squirrel.StatementBuilderType
	Logger  *slog.Logger

	// connection settings, reused by RunMigrations for its own connection
	dialectConfig DialectConfig
}

// Open connects using the dialect chosen by cfg.DatabaseType
func Open(cfg *config.Config, logger *slog.Logger) (*DB, error) {
	dialect, dialectConfig, err := dialectFor(cfg)
	if err != nil {
		return nil, err
	}
	return connect(dialect, dialectConfig, logger)
}

// OpenSQLite connects to a SQLite file, mostly for tests and the backup tool
func OpenSQLite(path string, logger *slog.Logger) (*DB, error) {
	return connect(NewSQLiteDialect(), DialectConfig{Path: path}, logger)
}

// New wraps an existing connection, e.g. one opened by sqlmock
func New(conn *sql.DB, driverName string, dialect Dialect, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{
		DB:      sqlx.NewDb(conn, driverName),
		Dialect: dialect,
		Builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		Logger:  logger.With("component", "database"),
	}
}

func dialectFor(cfg *config.Config) (Dialect, DialectConfig, error) {
	switch strings.ToLower(cfg.DatabaseType) {
	case "postgres", "postgresql":
		return NewPostgresDialect(), DialectConfig{URL: cfg.DatabaseURL}, nil
	case "mysql":
		return NewMySQLDialect(), DialectConfig{URL: cfg.DatabaseURL}, nil
	case "sqlite", "sqlite3", "":
		return NewSQLiteDialect(), DialectConfig{Path: cfg.DatabasePath}, nil
	default:
		return nil, DialectConfig{}, fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}
}

func connect(dialect Dialect, dialectConfig DialectConfig, logger *slog.Logger) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), _connectTimeout)
	defer cancel()

	dsn, err := dialect.DSN(dialectConfig)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.ConnectContext(ctx, dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := dialect.ConfigureConnection(conn.DB); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	db := New(conn.DB, dialect.DriverName(), dialect, logger)
	db.dialectConfig = dialectConfig
	db.Logger.Info("database connected", "driver", dialect.DriverName())
	return db, nil
}

// GetDialect returns the database dialect
func (db *DB) GetDialect() Dialect {
	return db.Dialect
}

// QueryContext executes a query with automatic placeholder rewriting
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// QueryRowContext executes a query that returns a single row with automatic placeholder rewriting
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// ExecContext executes a statement with automatic placeholder rewriting
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// SelectContext scans all rows into dest, a pointer to a slice of structs
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return db.DB.SelectContext(ctx, dest, db.Dialect.RewriteQuery(query), args...)
}

// GetContext scans a single row into dest. It returns sql.ErrNoRows when nothing matches.
func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return db.DB.GetContext(ctx, dest, db.Dialect.RewriteQuery(query), args...)
}

// ExecReturningID executes an INSERT and returns the new row's ID.
// PostgreSQL has no LastInsertId so the statement gets a RETURNING clause instead.
func (db *DB) ExecReturningID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	return execReturningID(ctx, db.DB, db.Dialect, query, args...)
}

// SQLBuilder is implemented by squirrel builders
type SQLBuilder interface {
	ToSql() (string, []interface{}, error)
}

// Build renders a squirrel builder and logs the SQL at debug level.
// Bound values are not logged, only their count.
func (db *DB) Build(b SQLBuilder) (string, []interface{}, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build query: %w", err)
	}
	db.Logger.Debug("build query", "sql", query, "args", len(args))
	return query, args, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func execReturningID(ctx context.Context, q execQuerier, dialect Dialect, query string, args ...interface{}) (int64, error) {
	rewritten := dialect.RewriteQuery(query)

	if dialect.SupportsLastInsertId() {
		result, err := q.ExecContext(ctx, rewritten, args...)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	rewritten = strings.TrimSuffix(strings.TrimSpace(rewritten), ";") + " RETURNING id"

	var id int64
	if err := q.QueryRowContext(ctx, rewritten, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
