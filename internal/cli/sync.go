package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/config"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/fetcher"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/ledger"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/metrics"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/pipeline"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/reconcile"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/resolver"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/scraper"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/storage"
)

type syncFlags struct {
	fromCache string
	saveCache string
	dryRun    bool
}

func newSyncCmd(g *globalFlags) *cobra.Command {
	f := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch both chamber calendars and reconcile the event ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, g, f)
		},
	}

	cmd.Flags().StringVar(&f.fromCache, "from-cache", "", "Replay extraction snapshots from this directory instead of fetching")
	cmd.Flags().StringVar(&f.saveCache, "save-cache", "", "Save extraction snapshots to this directory")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Compute the merge, then roll it back")
	return cmd
}

func runSync(cmd *cobra.Command, g *globalFlags, f *syncFlags) error {
	format, err := g.outputFormat()
	if err != nil {
		return err
	}
	cfg, log, err := g.load(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	m := metrics.NewRun()
	defer func() {
		m.Finish()
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("Metrics not written", logger.Fields{"error": err.Error()})
		}
	}()

	store, err := openLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	bills, err := newResolver(cfg, store)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Session:  cfg.Session,
		Location: cfg.Location(),
		DryRun:   f.dryRun,
	}
	if f.fromCache != "" {
		if opts.Replay, err = storage.New(f.fromCache); err != nil {
			return fmt.Errorf("opening snapshot cache: %w", err)
		}
	}
	if f.saveCache != "" {
		if opts.Save, err = storage.New(f.saveCache); err != nil {
			return fmt.Errorf("opening snapshot cache: %w", err)
		}
	}

	var fetch *fetcher.Fetcher
	if opts.Replay == nil {
		fetch = newFetcher(cfg)
	}

	extractors, err := newExtractors(cfg, log)
	if err != nil {
		return err
	}

	p := pipeline.New(fetch, extractors, reconcile.New(store, bills, log), m, opts).WithLogger(log)

	lock, err := pipeline.AcquireLock(cfg.Lock.Path, cfg.Lock.TTL, p.RunID())
	if err != nil {
		return err
	}
	defer lock.Release()

	report, err := p.Run(ctx)
	if err != nil {
		log.Error("Sync failed", logger.Fields{"run_id": p.RunID()}, err)
		return err
	}

	return WriteSyncReport(cmd.OutOrStdout(), report, format, g.verbose)
}

func newResolver(cfg config.Config, store *ledger.Store) (resolver.Resolver, error) {
	var next resolver.Resolver
	switch cfg.Resolver.Type {
	case "file":
		m, err := resolver.LoadMap(cfg.Resolver.Path)
		if err != nil {
			return nil, err
		}
		next = m
	default:
		next = resolver.NewSQL(store.DB(), store.Rebind)
	}
	if cfg.Resolver.CacheTTL <= 0 {
		return next, nil
	}
	return resolver.NewCached(next, cfg.Resolver.CacheTTL), nil
}

func newFetcher(cfg config.Config) *fetcher.Fetcher {
	var renderer fetcher.Renderer
	switch cfg.Fetch.Renderer {
	case "http":
		renderer = fetcher.NewHTTPRenderer()
	default:
		renderer = &fetcher.BrowserRenderer{SettleDelay: cfg.Fetch.SettleDelay}
	}

	identities := make([]fetcher.Identity, 0, len(cfg.Fetch.Identities))
	for _, id := range cfg.Fetch.Identities {
		identities = append(identities, fetcher.Identity{
			UserAgent: id.UserAgent,
			Width:     id.Width,
			Height:    id.Height,
			Locale:    id.Locale,
		})
	}

	return fetcher.New(renderer, fetcher.Options{
		MaxRetries:        cfg.Fetch.MaxRetries,
		PerAttemptTimeout: cfg.Fetch.PerAttemptTimeout,
		BaseDelay:         cfg.Fetch.BaseDelay,
		Jitter:            cfg.Fetch.Jitter,
		Identities:        identities,
	})
}

func newExtractors(cfg config.Config, log *logger.Logger) ([]scraper.Extractor, error) {
	opts := scraper.Options{
		AssemblyURL:      cfg.Assembly.URL,
		SenateURL:        cfg.Senate.URL,
		SenateWindowDays: cfg.Senate.WindowDays,
		Logger:           log,
	}

	var out []scraper.Extractor
	for _, c := range event.Chambers {
		if (c == event.Assembly && !cfg.AssemblyEnabled()) || (c == event.Senate && !cfg.SenateEnabled()) {
			continue
		}
		ex, err := scraper.ForChamber(c, opts)
		if err != nil {
			return nil, err
		}
		if err := cfg.CheckAttemptBudget(string(c), fetcher.AttemptBudget(ex.Interactions(), cfg.Fetch.SettleDelay)); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("every chamber is disabled")
	}
	return out, nil
}

// today is the current date in the configured zone
func today(cfg config.Config) event.Date {
	return event.DateOf(time.Now().In(cfg.Location()))
}
