// Package pinger keeps the hosting platform from idling the process by
// periodically fetching a monitoring URL.
package pinger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const requestTimeout = 10 * time.Second

// Opts is a carrier of options for Pinger.
type Opts struct {
	URL      string
	Interval time.Duration
}

// Pinger fires a GET at a fixed interval. Failures are logged and otherwise
// ignored; there is no retry and no state.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
}

func New(opts Opts) *Pinger {
	return &Pinger{
		url:      opts.URL,
		interval: opts.Interval,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// Run pings immediately, then on every interval tick until the context is
// cancelled.
func (p *Pinger) Run(ctx context.Context) {
	p.ping(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pinger stopped")
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

func (p *Pinger) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		slog.ErrorContext(ctx, "keep-alive ping request build failed", "url", p.url, "error", err)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "keep-alive ping failed", "url", p.url, "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	slog.DebugContext(ctx, "keep-alive ping sent", "url", p.url, "status", resp.StatusCode)
}
