// Package ledger is the durable store of scheduled events.
//
// The same queries run on SQLite (local runs and tests) and Postgres
// (production). They are written once with ? placeholders and rebound for
// Postgres when the statement is prepared.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// currentSchemaVersion is bumped with every schema change
const currentSchemaVersion = 1

var (
	//go:embed schema_sqlite.sql
	sqliteSchema string
	//go:embed schema_postgres.sql
	postgresSchema string
)

// ErrSchemaTooNew means the database was migrated by a newer release
var ErrSchemaTooNew = errors.New("ledger schema is newer than this release supports")

// Store provides access to the event ledger
type Store struct {
	db     *sql.DB
	driver string
	log    *logger.Logger
}

// Open connects to the ledger and applies the schema. This is idempotent.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite has one writer; a single connection also keeps temp tables visible
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &Store{db: db, driver: driver, log: logger.Default()}
	if err := s.applySchema(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// WithLogger sets the logger used for commit progress
func (s *Store) WithLogger(log *logger.Logger) *Store {
	if log != nil {
		s.log = log
	}
	return s
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying handle for collaborators sharing the database
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name
func (s *Store) Driver() string {
	return s.driver
}

// Rebind adapts a ?-placeholder query to the store's driver
func (s *Store) Rebind(query string) string {
	return Rebind(s.driver, query)
}

// Rebind rewrites ? placeholders as $1, $2, ... for Postgres.
// Queries must not contain literal question marks.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates missing tables and records the schema version
func (s *Store) applySchema(ctx context.Context, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, s.Rebind(`INSERT INTO schema_version (version) VALUES (?)`), currentSchemaVersion)
		if err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case version > currentSchemaVersion:
		return fmt.Errorf("%w: found %d, supported %d", ErrSchemaTooNew, version, currentSchemaVersion)
	}
	return nil
}

// AddBill records a bill in the bills table. The ingestion job normally owns
// this table; local runs and tests seed it here.
func (s *Store) AddBill(ctx context.Context, key, number, session string) error {
	_, err := s.db.ExecContext(ctx, s.Rebind(`
		INSERT INTO bills (bill_key, bill_number, session) VALUES (?, ?, ?)
		ON CONFLICT (bill_key) DO UPDATE SET bill_number = excluded.bill_number, session = excluded.session`),
		key, number, session)
	if err != nil {
		return fmt.Errorf("adding bill %s: %w", number, err)
	}
	return nil
}
