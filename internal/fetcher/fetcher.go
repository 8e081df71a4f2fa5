package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
)

// Attempt outcomes reported to the observer
const (
	OutcomeSuccess          = "success"
	OutcomeStatus           = "status"
	OutcomeTimeout          = "timeout"
	OutcomeIdentityMismatch = "identity_mismatch"
	OutcomeError            = "error"
)

// Interaction is a bounded page step run by renderers that drive a browser.
// WaitFor is awaited, Script is run, Done is polled until truthy and then the
// page is left to settle. Every stage is optional.
type Interaction struct {
	Name    string
	WaitFor string
	Script  string
	Done    string
	Timeout time.Duration
	Settle  time.Duration
}

func (in Interaction) timeout() time.Duration {
	if in.Timeout <= 0 {
		return defaultInteractionTimeout
	}
	return in.Timeout
}

// AttemptBudget is how long an attempt needs to run every interaction to its
// timeout, settle for settle and still read the document.
func AttemptBudget(interactions []Interaction, settle time.Duration) time.Duration {
	total := settle + DocumentReserve
	for _, in := range interactions {
		total += in.timeout() + in.Settle
	}
	return total
}

// Page is what a renderer produced for one attempt
type Page struct {
	HTML              string
	Status            int
	UserAgent         string // as reported by the client itself
	InteractionErrors []error
}

// Renderer loads a URL while presenting the given identity
type Renderer interface {
	Render(ctx context.Context, url string, id Identity, interactions []Interaction) (*Page, error)
}

// Content is an acquired page
type Content struct {
	URL               string
	HTML              string
	Status            int
	Identity          Identity
	Attempts          int
	InteractionErrors []error
	FetchedAt         time.Time
}

// Options configures a Fetcher
type Options struct {
	MaxRetries        int
	PerAttemptTimeout time.Duration
	BaseDelay         time.Duration
	Jitter            float64 // randomization factor of the delay
	Identities        []Identity
	Seed              int64 // identity shuffle; 0 seeds from the clock
}

// Fetcher acquires pages through a Renderer. The identity pool is shuffled
// once in New and only read afterwards, so concurrent Acquire calls are safe.
type Fetcher struct {
	renderer   Renderer
	opts       Options
	identities []Identity
	log        *logger.Logger
	observe    func(outcome string)
	backOff    func() backoff.BackOff
	now        func() time.Time
}

// New creates a Fetcher
func New(renderer Renderer, opts Options) *Fetcher {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	pool := opts.Identities
	if len(pool) == 0 {
		pool = DefaultIdentities
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	f := &Fetcher{
		renderer:   renderer,
		opts:       opts,
		identities: shuffleIdentities(pool, rand.New(rand.NewSource(seed))),
		log:        logger.Default(),
		observe:    func(string) {},
		now:        time.Now,
	}
	f.backOff = f.jitteredDelay
	return f
}

// With returns a copy of f that logs to log and reports attempt outcomes to observe.
// The copy shares the identity order of f.
func (f *Fetcher) With(log *logger.Logger, observe func(outcome string)) *Fetcher {
	c := *f
	if log != nil {
		c.log = log
	}
	if observe != nil {
		c.observe = observe
	}
	return &c
}

// Identities returns the pool in the order this run will use it
func (f *Fetcher) Identities() []Identity {
	out := make([]Identity, len(f.identities))
	copy(out, f.identities)
	return out
}

// jitteredDelay is a constant BaseDelay spread uniformly by the Jitter factor
func (f *Fetcher) jitteredDelay() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.BaseDelay
	b.MaxInterval = f.opts.BaseDelay
	b.Multiplier = 1
	b.RandomizationFactor = f.opts.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Acquire loads url, retrying across identities until one attempt succeeds.
// It returns a *FetchError once every identity has exhausted MaxRetries.
func (f *Fetcher) Acquire(ctx context.Context, url string, interactions ...Interaction) (*Content, error) {
	plan := newAttemptPlan(f.identities, f.opts.MaxRetries)
	delay := f.backOff()

	var lastErr error
	for {
		id, switched, ok := plan.next()
		if !ok {
			break
		}

		if plan.attempts() > 1 {
			if switched {
				f.log.Info("Rotating client identity", logger.Fields{
					"url":        url,
					"user_agent": id.UserAgent,
					"locale":     id.Locale,
				})
			}
			if err := sleep(ctx, delay.NextBackOff()); err != nil {
				return nil, fmt.Errorf("fetching %s: %w", url, err)
			}
		}

		page, err := f.attempt(ctx, url, id, interactions)
		f.observe(classify(err))
		if err == nil {
			for _, ierr := range page.InteractionErrors {
				f.log.Warn("Page interaction failed", logger.Fields{
					"url":   url,
					"error": ierr.Error(),
				})
			}
			return &Content{
				URL:               url,
				HTML:              page.HTML,
				Status:            page.Status,
				Identity:          id,
				Attempts:          plan.attempts(),
				InteractionErrors: page.InteractionErrors,
				FetchedAt:         f.now(),
			}, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetching %s: %w", url, ctx.Err())
		}
		lastErr = err
		f.log.Warn("Fetch attempt failed", logger.Fields{
			"url":        url,
			"attempt":    plan.attempts(),
			"of":         plan.capacity(),
			"user_agent": id.UserAgent,
			"outcome":    classify(err),
			"error":      err.Error(),
		})
	}

	return nil, &FetchError{URL: url, Attempts: plan.attempts(), Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string, id Identity, interactions []Interaction) (*Page, error) {
	actx := ctx
	if f.opts.PerAttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, f.opts.PerAttemptTimeout)
		defer cancel()
	}

	page, err := f.renderer.Render(actx, url, id, interactions)
	if err != nil {
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("attempt timed out after %s: %w", f.opts.PerAttemptTimeout, context.DeadlineExceeded)
		}
		return nil, err
	}
	if page.Status < 200 || page.Status > 299 {
		return nil, &StatusError{Code: page.Status}
	}
	if page.UserAgent != id.UserAgent {
		return nil, fmt.Errorf("%w: requested %q, client reported %q", ErrIdentityMismatch, id.UserAgent, page.UserAgent)
	}
	return page, nil
}

func classify(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &statusErr):
		return OutcomeStatus
	case errors.Is(err, ErrIdentityMismatch):
		return OutcomeIdentityMismatch
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	}
	return OutcomeError
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
