// Package pipeline runs one sync: acquire every chamber's calendar page
// concurrently, extract events, then reconcile the union into the ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/fetcher"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/metrics"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/reconcile"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/scraper"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/storage"
)

// ErrNoChamberData means no chamber produced a page this run
var ErrNoChamberData = errors.New("no chamber data acquired")

// Options configures a Pipeline
type Options struct {
	Session  string
	Location *time.Location // "today" is taken in this zone
	DryRun   bool
	// Replay reads extraction snapshots instead of fetching
	Replay *storage.Storage
	// Save writes each chamber's extraction snapshot after a fetch
	Save *storage.Storage
}

// Pipeline wires the fetcher, extractors and reconciler for one run
type Pipeline struct {
	fetcher    *fetcher.Fetcher
	extractors []scraper.Extractor
	reconciler *reconcile.Reconciler
	metrics    *metrics.Run
	opts       Options
	log        *logger.Logger
	now        func() time.Time
	runID      string
}

// New creates a Pipeline. f may be nil when opts.Replay is set.
func New(f *fetcher.Fetcher, extractors []scraper.Extractor, r *reconcile.Reconciler, m *metrics.Run, opts Options) *Pipeline {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if m == nil {
		m = metrics.NewRun()
	}
	runID := uuid.NewString()
	return &Pipeline{
		fetcher:    f,
		extractors: extractors,
		reconciler: r.WithObserver(m),
		metrics:    m,
		opts:       opts,
		log:        logger.Default().With(logger.Fields{"run_id": runID}),
		now:        time.Now,
		runID:      runID,
	}
}

// WithLogger sets the base logger; the run id is added to it
func (p *Pipeline) WithLogger(log *logger.Logger) *Pipeline {
	if log != nil {
		p.log = log.With(logger.Fields{"run_id": p.runID})
	}
	return p
}

// RunID returns the id attached to every log line of the run
func (p *Pipeline) RunID() string {
	return p.runID
}

// ChamberReport is the acquisition outcome of one chamber
type ChamberReport struct {
	Chamber  event.Chamber  `json:"chamber"`
	URL      string         `json:"url,omitempty"`
	Attempts int            `json:"attempts,omitempty"`
	Events   int            `json:"events"`
	Notices  int            `json:"notices"`
	Skipped  map[string]int `json:"skipped,omitempty"`
	Error    string         `json:"error,omitempty"`

	result *scraper.Result
	err    error
}

// Report describes a finished run
type Report struct {
	RunID    string             `json:"run_id"`
	Today    event.Date         `json:"today"`
	Chambers []*ChamberReport   `json:"chambers"`
	Summary  *reconcile.Summary `json:"summary,omitempty"`
}

// Failed lists the chambers whose acquisition failed
func (r *Report) Failed() []event.Chamber {
	var out []event.Chamber
	for _, c := range r.Chambers {
		if c.err != nil {
			out = append(out, c.Chamber)
		}
	}
	return out
}

// Run acquires all chambers then reconciles. A failed chamber is logged and
// left out; ErrNoChamberData is returned when every chamber failed.
// Once reconciliation starts it is not interrupted by ctx cancellation.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	today := event.DateOf(p.now().In(p.opts.Location))
	report := &Report{RunID: p.runID, Today: today}

	p.log.Info("Starting sync", logger.Fields{
		"today":    today.String(),
		"session":  p.opts.Session,
		"chambers": len(p.extractors),
		"dry_run":  p.opts.DryRun,
		"replay":   p.opts.Replay != nil,
	})
	if p.fetcher != nil && p.opts.Replay == nil {
		var agents []string
		for _, id := range p.fetcher.Identities() {
			agents = append(agents, id.UserAgent)
		}
		p.log.Debug("Client identity order", logger.Fields{"user_agents": agents})
	}

	report.Chambers = p.collect(ctx, today)

	events := event.NewSet()
	var notices []event.StatusChangeNotice
	var acquired []event.Chamber
	var errs []error
	for _, c := range report.Chambers {
		if c.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Chamber, c.err))
			continue
		}
		acquired = append(acquired, c.Chamber)
		events.Union(c.result.Events)
		notices = append(notices, c.result.Notices...)
		p.metrics.Extracted(c.Chamber, c.Events)
		for reason, n := range c.Skipped {
			p.metrics.Skipped(reason, n)
		}
	}

	if len(acquired) == 0 {
		return report, fmt.Errorf("%w: %w", ErrNoChamberData, errors.Join(errs...))
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("sync interrupted before reconciliation: %w", err)
	}

	summary, err := p.reconciler.Run(context.WithoutCancel(ctx), reconcile.Input{
		Today:    today,
		Session:  p.opts.Session,
		Chambers: acquired,
		Events:   events,
		Notices:  notices,
		DryRun:   p.opts.DryRun,
	})
	if err != nil {
		return report, err
	}
	report.Summary = summary

	if !p.opts.DryRun {
		p.metrics.Succeeded()
	}
	return report, nil
}

// collect acquires and extracts every chamber concurrently
func (p *Pipeline) collect(ctx context.Context, today event.Date) []*ChamberReport {
	reports := make([]*ChamberReport, len(p.extractors))

	var wg sync.WaitGroup
	for i, ex := range p.extractors {
		wg.Add(1)
		go func(i int, ex scraper.Extractor) {
			defer wg.Done()
			reports[i] = p.acquire(ctx, ex, today)
		}(i, ex)
	}
	wg.Wait()

	return reports
}

func (p *Pipeline) acquire(ctx context.Context, ex scraper.Extractor, today event.Date) *ChamberReport {
	chamber := ex.Chamber()
	log := p.log.With(logger.Fields{"chamber": string(chamber)})
	rep := &ChamberReport{Chamber: chamber, URL: ex.URL(today)}

	res, err := p.extract(ctx, ex, rep, log)
	if err != nil {
		rep.err = err
		rep.Error = err.Error()
		log.Error("Chamber abandoned for this run", logger.Fields{
			"url":      rep.URL,
			"attempts": rep.Attempts,
		}, err)
		return rep
	}

	rep.result = res
	rep.Events = res.Events.Len()
	rep.Notices = len(res.Notices)
	rep.Skipped = res.Skipped
	log.Info("Chamber extracted", logger.Fields{
		"events":  rep.Events,
		"notices": rep.Notices,
		"skipped": len(res.Skipped),
	})
	return rep
}

func (p *Pipeline) extract(ctx context.Context, ex scraper.Extractor, rep *ChamberReport, log *logger.Logger) (*scraper.Result, error) {
	chamber := ex.Chamber()

	if p.opts.Replay != nil {
		snap, err := p.opts.Replay.Load(chamber)
		if err != nil {
			return nil, fmt.Errorf("replaying snapshot: %w", err)
		}
		rep.URL = snap.URL
		log.Info("Replaying saved snapshot", logger.Fields{"fetched_at": snap.FetchedAt.Format(time.RFC3339)})
		return snap.Result(), nil
	}

	if p.fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	content, err := p.fetcher.With(log, p.metrics.FetchObserver(chamber)).Acquire(ctx, rep.URL, ex.Interactions()...)
	if err != nil {
		var fe *fetcher.FetchError
		if errors.As(err, &fe) {
			rep.Attempts = fe.Attempts
		}
		return nil, err
	}
	rep.Attempts = content.Attempts

	res, err := ex.Extract(content)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", rep.URL, err)
	}

	if p.opts.Save != nil {
		if err := p.opts.Save.Save(storage.NewSnapshot(chamber, content.URL, content.FetchedAt, res)); err != nil {
			log.Warn("Saving snapshot failed", logger.Fields{"error": err.Error()})
		}
	}
	return res, nil
}
