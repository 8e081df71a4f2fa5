package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/ledger"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/resolver"
)

// Skip reasons reported to the Observer
const (
	SkipUnresolved = "unresolved_bill"
	SkipPast       = "past_event"
	SkipCollapsed  = "collapsed_listing"
)

// Ledger is the transactional store the reconciler writes through
type Ledger interface {
	Commit(ctx context.Context, opts ledger.CommitOptions, merge ledger.MergeFunc) (*ledger.CommitResult, error)
}

// cacheStats is implemented by resolvers that memoize lookups
type cacheStats interface {
	Stats() (hits, misses int)
	Size() int
}

// Observer receives counts for run metrics
type Observer interface {
	Skipped(reason string, n int)
	Rows(action string, n int)
}

// Input is one run's extraction output
type Input struct {
	Today    event.Date
	Session  string
	Chambers []event.Chamber // chambers whose pages were acquired this run
	Events   *event.Set
	Notices  []event.StatusChangeNotice
	DryRun   bool
}

// Summary reports what a run did
type Summary struct {
	Observed         int  `json:"observed"`
	Resolved         int  `json:"resolved"`
	Unresolved       int  `json:"unresolved"`
	PastDropped      int  `json:"past_dropped"`
	Collapsed        int  `json:"collapsed"`
	Known            int  `json:"known"`
	Moved            int  `json:"moved"`
	Reactivated      int  `json:"reactivated"`
	Duplicates       int  `json:"duplicates"`
	Inserted         int  `json:"inserted"`
	Revised          int  `json:"revised"`
	Upserted         int  `json:"upserted"`
	NoticesApplied   int  `json:"notices_applied"`
	NoticesUnmatched int  `json:"notices_unmatched"`
	DryRun           bool `json:"dry_run"`
	Skipped          bool `json:"skipped"` // nothing was scraped, ledger untouched
}

// Reconciler merges scraped events into the ledger
type Reconciler struct {
	store    Ledger
	resolver resolver.Resolver
	log      *logger.Logger
	observer Observer
}

// New creates a Reconciler
func New(store Ledger, r resolver.Resolver, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Default()
	}
	return &Reconciler{store: store, resolver: r, log: log}
}

// WithObserver reports counts to o
func (r *Reconciler) WithObserver(o Observer) *Reconciler {
	r.observer = o
	return r
}

// Run resolves the input's events and commits the merge in one transaction
func (r *Reconciler) Run(ctx context.Context, in Input) (*Summary, error) {
	sum := &Summary{Observed: in.Events.Len(), DryRun: in.DryRun}

	if in.Events.Len() == 0 && len(in.Notices) == 0 {
		sum.Skipped = true
		r.log.Info("No schedule updates; finishing", nil)
		return sum, nil
	}
	if in.Today.IsZero() {
		return nil, errors.New("reconcile requires a current date")
	}

	fresh, err := r.resolve(ctx, in, sum)
	if err != nil {
		return nil, err
	}
	resolved := logger.Fields{
		"observed":     sum.Observed,
		"resolved":     sum.Resolved,
		"unresolved":   sum.Unresolved,
		"past_dropped": sum.PastDropped,
	}
	if c, ok := r.resolver.(cacheStats); ok {
		hits, misses := c.Stats()
		resolved["cache_hits"] = hits
		resolved["cache_misses"] = misses
		resolved["cache_entries"] = c.Size()
	}
	r.log.Info("Resolved scraped events", resolved)

	chambers := in.Chambers
	if len(chambers) == 0 {
		chambers = observedChambers(in)
	}

	var stats MergeStats
	res, err := r.store.Commit(ctx, ledger.CommitOptions{
		Today:    in.Today,
		Chambers: chambers,
		DryRun:   in.DryRun,
	}, func(known []event.ScheduledEvent) (*ledger.Plan, error) {
		var plan *ledger.Plan
		plan, stats = Merge(known, fresh, in.Notices)
		return plan, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconciling ledger: %w", err)
	}

	sum.Collapsed = len(stats.Collapsed)
	for _, c := range stats.Collapsed {
		r.log.Warn("Duplicate listing collapsed", logger.Fields{
			"bill_ref":      c.Dropped.BillRef,
			"chamber":       string(c.Dropped.Chamber),
			"event_date":    c.Dropped.EventDate.String(),
			"event_text":    c.Dropped.EventText,
			"kept_order":    c.Kept.AgendaOrder,
			"dropped_order": c.Dropped.AgendaOrder,
		})
	}
	sum.Known = res.Known
	sum.Moved = stats.Moved
	sum.Reactivated = stats.Reactivated
	sum.Duplicates = stats.Duplicates
	sum.Inserted = stats.Inserted
	sum.Revised = stats.Revised
	sum.Upserted = res.Upserted
	sum.NoticesApplied = res.NoticesApplied
	sum.NoticesUnmatched = len(res.UnmatchedNotices)

	r.report(sum)
	r.log.Info("Reconciliation complete", logger.Fields{
		"known":             sum.Known,
		"collapsed":         sum.Collapsed,
		"moved":             sum.Moved,
		"reactivated":       sum.Reactivated,
		"duplicates":        sum.Duplicates,
		"inserted":          sum.Inserted,
		"revised":           sum.Revised,
		"notices_applied":   sum.NoticesApplied,
		"notices_unmatched": sum.NoticesUnmatched,
		"dry_run":           sum.DryRun,
	})
	return sum, nil
}

// resolve binds each raw event to its bill key. Past rows and unknown bills are dropped.
func (r *Reconciler) resolve(ctx context.Context, in Input, sum *Summary) ([]event.ScheduledEvent, error) {
	fresh := make([]event.ScheduledEvent, 0, in.Events.Len())
	for _, raw := range in.Events.Sorted() {
		if raw.EventDate.Before(in.Today) {
			sum.PastDropped++
			r.log.Debug("Past event dropped", logger.Fields{
				"bill_number": raw.BillNumber,
				"event_date":  raw.EventDate.String(),
			})
			continue
		}

		key, err := r.resolver.Resolve(ctx, raw.BillNumber, in.Session)
		if errors.Is(err, resolver.ErrNotFound) {
			sum.Unresolved++
			r.log.Warn("Unresolved bill dropped", logger.Fields{
				"bill_number": raw.BillNumber,
				"session":     in.Session,
				"chamber":     string(raw.Chamber),
				"event_date":  raw.EventDate.String(),
				"event_text":  raw.EventText,
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", raw.BillNumber, err)
		}

		sum.Resolved++
		fresh = append(fresh, raw.Resolve(key))
	}
	return fresh, nil
}

func (r *Reconciler) report(sum *Summary) {
	if r.observer == nil {
		return
	}
	r.observer.Skipped(SkipUnresolved, sum.Unresolved)
	r.observer.Skipped(SkipPast, sum.PastDropped)
	r.observer.Skipped(SkipCollapsed, sum.Collapsed)
	r.observer.Rows("moved", sum.Moved)
	r.observer.Rows("reactivated", sum.Reactivated)
	r.observer.Rows("duplicate", sum.Duplicates)
	r.observer.Rows("inserted", sum.Inserted)
	r.observer.Rows("revised", sum.Revised)
	r.observer.Rows("notice_applied", sum.NoticesApplied)
	r.observer.Rows("notice_unmatched", sum.NoticesUnmatched)
}

// observedChambers lists the chambers present in the input, in stable order
func observedChambers(in Input) []event.Chamber {
	seen := make(map[event.Chamber]bool)
	for _, e := range in.Events.Sorted() {
		seen[e.Chamber] = true
	}
	for _, n := range in.Notices {
		seen[n.Chamber] = true
	}
	var out []event.Chamber
	for _, c := range event.Chambers {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}
