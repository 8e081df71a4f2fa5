package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/scraper"
)

// ErrNoSnapshot means no snapshot was saved for the chamber
var ErrNoSnapshot = errors.New("no snapshot saved")

// Snapshot is the serialized extraction output of one chamber
type Snapshot struct {
	Chamber   event.Chamber              `json:"chamber"`
	URL       string                     `json:"url,omitempty"`
	FetchedAt time.Time                  `json:"fetched_at"`
	SavedAt   string                     `json:"saved_at"`
	Events    []event.RawEvent           `json:"events"`
	Notices   []event.StatusChangeNotice `json:"notices,omitempty"`
	Skipped   map[string]int             `json:"skipped,omitempty"`
}

// NewSnapshot captures res for the chamber
func NewSnapshot(chamber event.Chamber, url string, fetchedAt time.Time, res *scraper.Result) *Snapshot {
	snap := &Snapshot{Chamber: chamber, URL: url, FetchedAt: fetchedAt.UTC()}
	if res == nil {
		return snap
	}
	snap.Events = res.Events.Sorted()
	snap.Notices = res.Notices
	snap.Skipped = res.Skipped
	return snap
}

// Result rebuilds the extraction result held by the snapshot
func (s *Snapshot) Result() *scraper.Result {
	skipped := make(map[string]int, len(s.Skipped))
	for k, v := range s.Skipped {
		skipped[k] = v
	}
	return &scraper.Result{
		Events:  event.NewSet(s.Events...),
		Notices: s.Notices,
		Skipped: skipped,
	}
}

// Storage handles persistence of extraction snapshots
type Storage struct {
	dataDir string
	now     func() time.Time
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{dataDir: dataDir, now: time.Now}, nil
}

// Dir returns the snapshot directory
func (s *Storage) Dir() string {
	return s.dataDir
}

func (s *Storage) snapshotPath(chamber event.Chamber) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("snapshot_%s.json", strings.ToLower(string(chamber))))
}

// Load reads the chamber's snapshot. It returns ErrNoSnapshot when none was saved.
func (s *Storage) Load(chamber event.Chamber) (*Snapshot, error) {
	data, err := os.ReadFile(s.snapshotPath(chamber))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", chamber, ErrNoSnapshot)
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snap.Chamber != chamber {
		return nil, fmt.Errorf("snapshot for %s holds %q", chamber, snap.Chamber)
	}
	return &snap, nil
}

// Save writes the snapshot, replacing any earlier one for the chamber.
// The file is written to a temporary name first and renamed into place.
func (s *Storage) Save(snap *Snapshot) error {
	if snap.Chamber == "" {
		return errors.New("snapshot has no chamber")
	}
	snap.SavedAt = s.now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	path := s.snapshotPath(snap.Chamber)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
