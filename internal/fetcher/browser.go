package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const defaultInteractionTimeout = 30 * time.Second

// DocumentReserve is kept back from the attempt deadline so the document can
// still be read after the interactions run out of time.
const DocumentReserve = 10 * time.Second

// BrowserRenderer loads pages in headless Chrome. Each Render starts a fresh
// browser configured for the identity so no state leaks between attempts.
type BrowserRenderer struct {
	ExecPath    string        // empty uses the chromedp lookup
	SettleDelay time.Duration // pause after interactions before the DOM is read
}

func (r *BrowserRenderer) Render(ctx context.Context, url string, id Identity, interactions []Interaction) (*Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(id.UserAgent),
		chromedp.Flag("lang", id.Locale),
	)
	if id.Width > 0 && id.Height > 0 {
		opts = append(opts, chromedp.WindowSize(id.Width, id.Height))
	}
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, fmt.Errorf("navigating: %w", err)
	}

	page := &Page{}
	if resp != nil {
		page.Status = int(resp.Status)
	}
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(`navigator.userAgent`, &page.UserAgent)); err != nil {
		return nil, fmt.Errorf("reading user agent: %w", err)
	}
	// The fetcher rejects these pages; skip the interactions
	if page.Status < 200 || page.Status > 299 || page.UserAgent != id.UserAgent {
		return page, nil
	}

	page.InteractionErrors = runInteractions(tabCtx, r.SettleDelay+DocumentReserve, interactions, runInteraction)

	if err := chromedp.Run(tabCtx,
		chromedp.Sleep(r.SettleDelay),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return page, nil
}

// runInteractions runs each interaction before the attempt deadline less
// reserve. Once that budget is spent the remaining ones are not started, and
// the caller reads whatever the page holds.
func runInteractions(ctx context.Context, reserve time.Duration, interactions []Interaction, run func(context.Context, Interaction) error) []error {
	if len(interactions) == 0 {
		return nil
	}
	bctx, cancel := interactionContext(ctx, reserve)
	defer cancel()

	var errs []error
	for _, in := range interactions {
		if err := bctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: not started: %w", in.Name, err))
			continue
		}
		if err := run(bctx, in); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", in.Name, err))
		}
	}
	return errs
}

func interactionContext(ctx context.Context, reserve time.Duration) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline.Add(-reserve))
}

func runInteraction(ctx context.Context, in Interaction) error {
	timeout := in.timeout()
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var actions []chromedp.Action
	if in.WaitFor != "" {
		actions = append(actions, chromedp.WaitReady(in.WaitFor, chromedp.ByQuery))
	}
	if in.Script != "" {
		actions = append(actions, chromedp.Evaluate(in.Script, nil))
	}
	if in.Done != "" {
		var done bool
		actions = append(actions, chromedp.Poll(in.Done, &done, chromedp.WithPollingTimeout(timeout)))
	}
	if in.Settle > 0 {
		actions = append(actions, chromedp.Sleep(in.Settle))
	}
	if len(actions) == 0 {
		return nil
	}
	return chromedp.Run(ictx, actions...)
}
