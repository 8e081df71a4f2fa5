// Package resolver maps scraped bill numbers to the internal bill keys the
// ledger is keyed by.
package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
)

// ErrNotFound means the bill is not known for the session
var ErrNotFound = errors.New("bill not found")

// Resolver looks up the bill key of a normalized bill number in a session
type Resolver interface {
	Resolve(ctx context.Context, billNumber, session string) (string, error)
}

// SQL resolves against the bills table maintained by the bill ingestion job.
// Stored numbers are compared with their spaces removed so "AB 12" matches "AB12".
type SQL struct {
	db    *sql.DB
	query string
}

// NewSQL creates a SQL resolver. rebind adapts the ? placeholders to the driver.
func NewSQL(db *sql.DB, rebind func(string) string) *SQL {
	q := `SELECT bill_key FROM bills WHERE REPLACE(bill_number, ' ', '') = ? AND session = ?`
	if rebind != nil {
		q = rebind(q)
	}
	return &SQL{db: db, query: q}
}

func (r *SQL) Resolve(ctx context.Context, billNumber, session string) (string, error) {
	var key string
	err := r.db.QueryRowContext(ctx, r.query, event.NormalizeBillNumber(billNumber), session).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s in session %s: %w", billNumber, session, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("looking up bill %s: %w", billNumber, err)
	}
	return key, nil
}

// Map resolves from an in-memory table, loaded from YAML for offline runs:
//
//	"20252026":
//	  AB12: ocd-bill/ab12
//	  SB 7: ocd-bill/sb7
type Map struct {
	bills map[string]map[string]string // session -> bill number -> key
}

// NewMap creates a Map resolver; bill numbers are normalized
func NewMap(bills map[string]map[string]string) *Map {
	m := &Map{bills: make(map[string]map[string]string, len(bills))}
	for session, entries := range bills {
		norm := make(map[string]string, len(entries))
		for number, key := range entries {
			norm[event.NormalizeBillNumber(number)] = strings.TrimSpace(key)
		}
		m.bills[session] = norm
	}
	return m
}

// LoadMap reads a YAML bill map
func LoadMap(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bill map: %w", err)
	}
	var bills map[string]map[string]string
	if err := yaml.Unmarshal(data, &bills); err != nil {
		return nil, fmt.Errorf("parsing bill map: %w", err)
	}
	return NewMap(bills), nil
}

func (m *Map) Resolve(_ context.Context, billNumber, session string) (string, error) {
	if key, ok := m.bills[session][event.NormalizeBillNumber(billNumber)]; ok && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%s in session %s: %w", billNumber, session, ErrNotFound)
}
