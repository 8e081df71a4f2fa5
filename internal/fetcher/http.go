package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodySize caps a calendar page; real pages are well under a megabyte
const maxBodySize = 16 << 20

// ErrInteractionUnsupported is reported for each interaction a static renderer cannot run
var ErrInteractionUnsupported = errors.New("interaction requires a browser renderer")

// HTTPRenderer fetches static HTML with a plain GET
type HTTPRenderer struct {
	Client *http.Client
}

// NewHTTPRenderer creates an HTTPRenderer using a fresh client.
// Timeouts come from the per-attempt context.
func NewHTTPRenderer() *HTTPRenderer {
	return &HTTPRenderer{Client: &http.Client{}}
}

func (r *HTTPRenderer) Render(ctx context.Context, url string, id Identity, interactions []Interaction) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", id.UserAgent)
	if id.Locale != "" {
		req.Header.Set("Accept-Language", id.Locale)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	page := &Page{
		HTML:      string(body),
		Status:    resp.StatusCode,
		UserAgent: req.Header.Get("User-Agent"),
	}
	for _, in := range interactions {
		page.InteractionErrors = append(page.InteractionErrors,
			fmt.Errorf("%s: %w", in.Name, ErrInteractionUnsupported))
	}
	return page, nil
}
