package resolver

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func TestMapResolve(t *testing.T) {
	m := NewMap(map[string]map[string]string{
		"20252026": {"A.B. No. 12": "bill-ab12", "SB 7": "bill-sb7"},
	})

	tests := []struct {
		name       string
		billNumber string
		session    string
		want       string
		wantErr    error
	}{
		{name: "normalized match", billNumber: "AB12", session: "20252026", want: "bill-ab12"},
		{name: "label form", billNumber: "S.B. No. 7", session: "20252026", want: "bill-sb7"},
		{name: "unknown bill", billNumber: "AB999", session: "20252026", wantErr: ErrNotFound},
		{name: "other session", billNumber: "AB12", session: "20232024", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Resolve(context.Background(), tt.billNumber, tt.session)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bills.yml")
	body := "\"20252026\":\n  AB 340: bill-ab340\n  SB100: bill-sb100\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMap(path)
	if err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	got, err := m.Resolve(context.Background(), "AB340", "20252026")
	if err != nil || got != "bill-ab340" {
		t.Errorf("Resolve(AB340) = (%q, %v)", got, err)
	}

	if _, err := LoadMap(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSQLResolve(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE bills (bill_key TEXT PRIMARY KEY, bill_number TEXT NOT NULL, session TEXT NOT NULL)`,
		`INSERT INTO bills VALUES ('2025-ab12', 'AB 12', '20252026'), ('2023-ab12', 'AB12', '20232024')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("setup %q: %v", s, err)
		}
	}

	r := NewSQL(db, nil)
	ctx := context.Background()

	got, err := r.Resolve(ctx, "A.B. No. 12", "20252026")
	if err != nil || got != "2025-ab12" {
		t.Errorf("Resolve(current session) = (%q, %v), want 2025-ab12", got, err)
	}
	got, err = r.Resolve(ctx, "AB12", "20232024")
	if err != nil || got != "2023-ab12" {
		t.Errorf("Resolve(prior session) = (%q, %v), want 2023-ab12", got, err)
	}
	if _, err := r.Resolve(ctx, "SB1", "20252026"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(unknown) error = %v, want ErrNotFound", err)
	}
}

type countingResolver struct {
	calls int
	err   error
}

func (c *countingResolver) Resolve(_ context.Context, billNumber, _ string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	if billNumber == "AB404" {
		return "", ErrNotFound
	}
	return "key-" + billNumber, nil
}

func TestCached(t *testing.T) {
	next := &countingResolver{}
	cache := NewCached(next, time.Hour)
	ctx := context.Background()

	t.Run("new cache is empty", func(t *testing.T) {
		if cache.Size() != 0 {
			t.Errorf("new cache size = %d, want 0", cache.Size())
		}
	})

	t.Run("second lookup is a hit", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			got, err := cache.Resolve(ctx, "AB12", "s")
			if err != nil || got != "key-AB12" {
				t.Fatalf("Resolve() = (%q, %v)", got, err)
			}
		}
		if next.calls != 1 {
			t.Errorf("underlying calls = %d, want 1", next.calls)
		}
		hits, misses := cache.Stats()
		if hits != 1 || misses != 1 {
			t.Errorf("Stats() = (%d, %d), want (1, 1)", hits, misses)
		}
	})

	t.Run("not found is cached", func(t *testing.T) {
		before := next.calls
		for i := 0; i < 3; i++ {
			if _, err := cache.Resolve(ctx, "AB404", "s"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
			}
		}
		if next.calls != before+1 {
			t.Errorf("underlying calls = %d, want %d", next.calls, before+1)
		}
	})

	t.Run("expired entries are refetched", func(t *testing.T) {
		now := time.Now()
		cache.now = func() time.Time { return now.Add(2 * time.Hour) }
		defer func() { cache.now = time.Now }()

		before := next.calls
		if _, err := cache.Resolve(ctx, "AB12", "s"); err != nil {
			t.Fatal(err)
		}
		if next.calls != before+1 {
			t.Errorf("expected expired entry to be refetched")
		}
	})
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	next := &countingResolver{err: errors.New("connection refused")}
	cache := NewCached(next, time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := cache.Resolve(context.Background(), "AB1", "s"); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("underlying calls = %d, want 2", next.calls)
	}
	if cache.Size() != 0 {
		t.Errorf("cache size = %d, want 0", cache.Size())
	}
}
