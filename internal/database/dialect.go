package database

import (
	"database/sql"
	"regexp"
	"strconv"

	migratedb "github.com/golang-migrate/migrate/v4/database"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) (string, error)

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId()
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// OpenMigrationDriver opens a dedicated connection wrapped for golang-migrate.
	// Closing the driver closes the connection.
	OpenMigrationDriver(config DialectConfig) (migratedb.Driver, error)

	// UpsertNightNapQuery inserts a night record or replaces the times of the
	// existing one for the same child and date. Args: child_id, nap_date, wake_up, fall_asleep.
	UpsertNightNapQuery() string

	// IsUniqueViolation reports whether err came from a unique constraint
	IsUniqueViolation(err error) bool

	// SyncSequenceQuery realigns the id generator of table after rows were
	// inserted with explicit ids. Empty when the dialect needs nothing.
	SyncSequenceQuery(table string) string
}

// DialectConfig carries the connection settings; Path is used by SQLite, URL by the others
type DialectConfig struct {
	Path string
	URL  string
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered turns each ? into $1, $2, ... in order
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
