package scraper

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/fetcher"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
)

func TestFetchAndExtract(t *testing.T) {
	tests := []struct {
		name        string
		htmlContent string
		statusCode  int
		wantError   bool
		wantEvents  int
	}{
		{
			name: "hearing with agenda",
			htmlContent: `
				<html><body>
					<div class="dailyfile-section-item"><div class="header">Monday, March 10, 2025</div>No agendas are found for this event.</div>
					<h5>Monday, March 10, 2025</h5>
					<div class="dailyfile-section-item">
						<div class="header">TRANSPORTATION</div>
						<div class="body"><div class="attribute time-location">2:30 p.m. - 1021 O Street, Room 1100</div></div>
						<div class="footer"><div class="attribute agenda-container">
							<span class="measureLink">A.B. No. 1</span>
							<span class="measureLink">A.B. No. 2</span>
						</div></div>
					</div>
				</body></html>
			`,
			statusCode: http.StatusOK,
			wantEvents: 2,
		},
		{
			name:       "HTTP error",
			statusCode: http.StatusNotFound,
			wantError:  true,
		},
		{
			name:        "empty page",
			htmlContent: `<html><body></body></html>`,
			statusCode:  http.StatusOK,
			wantEvents:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.htmlContent))
			}))
			defer server.Close()

			log := logger.New(logger.LevelError, &bytes.Buffer{})
			x := NewAssembly(server.URL, log)
			f := fetcher.New(fetcher.NewHTTPRenderer(), fetcher.Options{MaxRetries: 1, Seed: 1}).With(log, nil)

			content, err := f.Acquire(context.Background(), x.URL(event.Today(time.UTC)))
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}

			res, err := x.Extract(content)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if res.Events.Len() != tt.wantEvents {
				t.Errorf("expected %d events, got %d", tt.wantEvents, res.Events.Len())
			}
		})
	}
}
