package database

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

func TestDialectBasics(t *testing.T) {
	tests := []struct {
		name           string
		dialect        Dialect
		driver         string
		subdir         string
		lastInsertID   bool
		upsertContains string
	}{
		{
			name:           "SQLite",
			dialect:        NewSQLiteDialect(),
			driver:         "sqlite3",
			subdir:         "sqlite",
			lastInsertID:   true,
			upsertContains: "ON CONFLICT(child_id, nap_date)",
		},
		{
			name:           "PostgreSQL",
			dialect:        NewPostgresDialect(),
			driver:         "postgres",
			subdir:         "postgres",
			lastInsertID:   false,
			upsertContains: "ON CONFLICT (child_id, nap_date)",
		},
		{
			name:           "MySQL",
			dialect:        NewMySQLDialect(),
			driver:         "mysql",
			subdir:         "mysql",
			lastInsertID:   true,
			upsertContains: "ON DUPLICATE KEY UPDATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.DriverName(); got != tt.driver {
				t.Errorf("DriverName() = %v, want %v", got, tt.driver)
			}
			if got := tt.dialect.MigrationsSubdir(); got != tt.subdir {
				t.Errorf("MigrationsSubdir() = %v, want %v", got, tt.subdir)
			}
			if got := tt.dialect.SupportsLastInsertId(); got != tt.lastInsertID {
				t.Errorf("SupportsLastInsertId() = %v, want %v", got, tt.lastInsertID)
			}
			if got := tt.dialect.UpsertNightNapQuery(); !strings.Contains(got, tt.upsertContains) {
				t.Errorf("UpsertNightNapQuery() = %q, want it to contain %q", got, tt.upsertContains)
			}
		})
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM naps WHERE child_id = ?",
			expected: "SELECT * FROM naps WHERE child_id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM naps WHERE child_id = ?",
			expected: "SELECT * FROM naps WHERE child_id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM naps WHERE child_id = ? AND nap_date >= ? AND nap_date <= ?",
			expected: "SELECT * FROM naps WHERE child_id = $1 AND nap_date >= $2 AND nap_date <= $3",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE users SET active = ? WHERE id = ?",
			expected: "UPDATE users SET active = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{"sqlite unique", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite not null", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, false},
		{"postgres unique", NewPostgresDialect(), &pq.Error{Code: "23505"}, true},
		{"postgres fk", NewPostgresDialect(), &pq.Error{Code: "23503"}, false},
		{"mysql duplicate", NewMySQLDialect(), &mysql.MySQLError{Number: 1062}, true},
		{"mysql other", NewMySQLDialect(), &mysql.MySQLError{Number: 1452}, false},
		{"plain error", NewSQLiteDialect(), errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		config  DialectConfig
		want    string
		wantErr bool
	}{
		{"sqlite path", NewSQLiteDialect(), DialectConfig{Path: "./napdiary.db"}, "./napdiary.db", false},
		{"sqlite empty", NewSQLiteDialect(), DialectConfig{}, "", true},
		{"postgres url", NewPostgresDialect(), DialectConfig{URL: "postgres://naps@db/napdiary"}, "postgres://naps@db/napdiary", false},
		{"postgres empty", NewPostgresDialect(), DialectConfig{}, "", true},
		{"mysql empty", NewMySQLDialect(), DialectConfig{}, "", true},
		{"mysql malformed", NewMySQLDialect(), DialectConfig{URL: "not a dsn"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.dialect.DSN(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DSN() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMySQLDSNParsesTime(t *testing.T) {
	for _, url := range []string{
		"naps:secret@tcp(db:3306)/napdiary",
		"naps:secret@tcp(db:3306)/napdiary?parseTime=false&charset=utf8mb4",
	} {
		dsn, err := NewMySQLDialect().DSN(DialectConfig{URL: url})
		if err != nil {
			t.Fatalf("DSN(%q) error = %v", url, err)
		}

		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			t.Fatalf("ParseDSN(%q) error = %v", dsn, err)
		}
		if !cfg.ParseTime {
			t.Errorf("DSN(%q) = %q, want parseTime enabled", url, dsn)
		}
		if cfg.MultiStatements {
			t.Errorf("DSN(%q) = %q, multiStatements must stay off for the application pool", url, dsn)
		}
		if cfg.DBName != "napdiary" || cfg.User != "naps" || cfg.Addr != "db:3306" {
			t.Errorf("DSN(%q) lost connection settings: %+v", url, cfg)
		}
	}
}
