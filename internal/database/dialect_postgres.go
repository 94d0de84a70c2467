package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/lib/pq"
)

const _pgUniqueViolation = "23505"

// PostgresDialect implements Dialect for PostgreSQL
type PostgresDialect struct{}

func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

func (d *PostgresDialect) DriverName() string {
	return "postgres"
}

func (d *PostgresDialect) DSN(config DialectConfig) (string, error) {
	if config.URL == "" {
		return "", errors.New("DATABASE_URL is required for postgres")
	}
	return config.URL, nil
}

// RewriteQuery converts ? placeholders to $1, $2, ...
func (d *PostgresDialect) RewriteQuery(query string) string {
	return rewritePlaceholdersToNumbered(query)
}

func (d *PostgresDialect) SupportsLastInsertId() bool {
	return false
}

func (d *PostgresDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (d *PostgresDialect) MigrationsSubdir() string {
	return "postgres"
}

func (d *PostgresDialect) OpenMigrationDriver(config DialectConfig) (migratedb.Driver, error) {
	dsn, err := d.DSN(config)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	driver, err := migratepg.WithInstance(conn, &migratepg.Config{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare postgres migrations: %w", err)
	}
	return driver, nil
}

func (d *PostgresDialect) UpsertNightNapQuery() string {
	return "INSERT INTO night_naps (child_id, nap_date, wake_up, fall_asleep) VALUES (?, ?, ?, ?) " +
		"ON CONFLICT (child_id, nap_date) DO UPDATE SET wake_up = EXCLUDED.wake_up, fall_asleep = EXCLUDED.fall_asleep"
}

func (d *PostgresDialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == _pgUniqueViolation
}

func (d *PostgresDialect) SyncSequenceQuery(table string) string {
	return fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false)", table)
}
