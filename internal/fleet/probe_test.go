package fleet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oio/domestic-ai/internal/testutil/testlog"
)

func unitForServer(t *testing.T, srv *httptest.Server, endpoint string, timeout time.Duration) *Unit {
	t.Helper()
	parsed, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	return &Unit{
		Name:           "probe-target",
		Kind:           KindHTTP,
		Host:           parsed.Hostname(),
		Port:           port,
		Endpoint:       endpoint,
		StartupTimeout: timeout,
	}
}

func TestProberReadyAgainstLiveEndpoint(t *testing.T) {
	testlog.Start(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api_endpoints" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber()
	u := unitForServer(t, srv, "/api_endpoints", time.Second)
	if !p.Ready(context.Background(), u, time.Second) {
		t.Fatalf("expected ready on 200 endpoint")
	}

	u.Endpoint = "/missing"
	if p.Ready(context.Background(), u, time.Second) {
		t.Fatalf("non-200 endpoint must not be ready")
	}
}

func TestProberReadyRejectsUnprobeable(t *testing.T) {
	p := NewProber()
	if p.Ready(context.Background(), &Unit{Name: "bot", Kind: KindProcess}, time.Second) {
		t.Fatalf("process unit must never probe ready")
	}
}

func TestWaitReadyEventuallySucceeds(t *testing.T) {
	testlog.Start(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber()
	u := unitForServer(t, srv, "/", 5*time.Second)
	if err := p.WaitReady(context.Background(), u, 50*time.Millisecond); err != nil {
		t.Fatalf("expected eventual readiness: %v", err)
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber()
	u := unitForServer(t, srv, "/", 300*time.Millisecond)
	err := p.WaitReady(context.Background(), u, 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestWaitReadyHonorsCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	p := NewProber()
	u := unitForServer(t, srv, "/", 10*time.Second)
	err := p.WaitReady(ctx, u, 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}
