package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
)

const _mysqlDuplicateEntry = 1062

// MySQLDialect implements Dialect for MySQL
type MySQLDialect struct{}

func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// DSN forces parseTime so DATETIME columns scan into time.Time
func (d *MySQLDialect) DSN(config DialectConfig) (string, error) {
	cfg, err := d.parseDSN(config)
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

func (d *MySQLDialect) parseDSN(config DialectConfig) (*mysql.Config, error) {
	if config.URL == "" {
		return nil, errors.New("DATABASE_URL is required for mysql")
	}
	cfg, err := mysql.ParseDSN(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql DATABASE_URL: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	return query
}

func (d *MySQLDialect) SupportsLastInsertId() bool {
	return true
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS = 1;"); err != nil {
		return err
	}
	return nil
}

func (d *MySQLDialect) MigrationsSubdir() string {
	return "mysql"
}

// OpenMigrationDriver enables multiStatements on the migration connection only;
// golang-migrate sends each file as a single statement batch.
func (d *MySQLDialect) OpenMigrationDriver(config DialectConfig) (migratedb.Driver, error) {
	cfg, err := d.parseDSN(config)
	if err != nil {
		return nil, err
	}
	cfg.MultiStatements = true

	conn, err := sql.Open(d.DriverName(), cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	driver, err := migratemysql.WithInstance(conn, &migratemysql.Config{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare mysql migrations: %w", err)
	}
	return driver, nil
}

func (d *MySQLDialect) UpsertNightNapQuery() string {
	return "INSERT INTO night_naps (child_id, nap_date, wake_up, fall_asleep) VALUES (?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE wake_up = VALUES(wake_up), fall_asleep = VALUES(fall_asleep)"
}

func (d *MySQLDialect) IsUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == _mysqlDuplicateEntry
}

func (d *MySQLDialect) SyncSequenceQuery(table string) string {
	return ""
}
