package pinger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun_PingsOnInterval(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	p := New(Opts{URL: srv.URL, Interval: 20 * time.Millisecond})
	p.Run(ctx)

	assert.GreaterOrEqual(t, hits.Load(), int64(2), "immediate ping plus at least one tick")
}

func TestRun_FailuresAreIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srvURL := srv.URL
	srv.Close() // every ping now fails at the dial

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	p := New(Opts{URL: srvURL, Interval: 20 * time.Millisecond})
	p.Run(ctx) // must return on context cancel without panicking
}
