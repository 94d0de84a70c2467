package database

import (
	"database/sql"
	"errors"
	"fmt"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/mattn/go-sqlite3"
)

// SQLiteDialect implements Dialect for SQLite
type SQLiteDialect struct{}

func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (d *SQLiteDialect) DriverName() string {
	return "sqlite3"
}

func (d *SQLiteDialect) DSN(config DialectConfig) (string, error) {
	if config.Path == "" {
		return "", errors.New("sqlite database path is empty")
	}
	return config.Path, nil
}

func (d *SQLiteDialect) RewriteQuery(query string) string {
	return query
}

func (d *SQLiteDialect) SupportsLastInsertId() bool {
	return true
}

func (d *SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	// One long-lived connection: SQLite serialises writers and the pragmas
	// below are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return err
	}
	return nil
}

func (d *SQLiteDialect) MigrationsSubdir() string {
	return "sqlite"
}

func (d *SQLiteDialect) OpenMigrationDriver(config DialectConfig) (migratedb.Driver, error) {
	dsn, err := d.DSN(config)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	driver, err := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare sqlite migrations: %w", err)
	}
	return driver, nil
}

func (d *SQLiteDialect) UpsertNightNapQuery() string {
	return "INSERT INTO night_naps (child_id, nap_date, wake_up, fall_asleep) VALUES (?, ?, ?, ?) " +
		"ON CONFLICT(child_id, nap_date) DO UPDATE SET wake_up = excluded.wake_up, fall_asleep = excluded.fall_asleep"
}

func (d *SQLiteDialect) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (d *SQLiteDialect) SyncSequenceQuery(table string) string {
	return ""
}
