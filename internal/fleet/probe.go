package fleet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oio/domestic-ai/internal/observability"
)

var ErrNotProbeable = errors.New("fleet: unit has no readiness endpoint")

// escalating per-attempt timeouts for Check, shortest first so a live but
// slow service still passes.
var checkTimeouts = []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}

// Prober performs HTTP readiness checks against unit endpoints.
type Prober struct {
	client *http.Client
}

func NewProber() *Prober {
	return &Prober{
		client: &http.Client{},
	}
}

// Ready performs a single readiness probe with the given timeout. A unit is
// ready only when its endpoint answers 200.
func (p *Prober) Ready(ctx context.Context, u *Unit, timeout time.Duration) bool {
	if !u.Probeable() {
		return false
	}
	start := time.Now()
	ok := p.probeOnce(ctx, u, timeout)
	observability.RecordProbe(u.Name, ok, time.Since(start))
	return ok
}

// Check probes with escalating timeouts. A connection refusal fails fast;
// timeouts retry with a longer allowance.
func (p *Prober) Check(ctx context.Context, u *Unit) bool {
	if !u.Probeable() {
		return false
	}
	start := time.Now()
	ok := false
	for _, timeout := range checkTimeouts {
		if ctx.Err() != nil {
			break
		}
		if p.probeOnce(ctx, u, timeout) {
			ok = true
			break
		}
	}
	observability.RecordProbe(u.Name, ok, time.Since(start))
	return ok
}

// WaitReady polls the unit endpoint until it answers 200 or the startup
// timeout elapses.
func (p *Prober) WaitReady(ctx context.Context, u *Unit, interval time.Duration) error {
	if !u.Probeable() {
		return fmt.Errorf("%w: %s", ErrNotProbeable, u.Name)
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(u.StartupTimeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if p.Ready(waitCtx, u, 2*time.Second) {
			return nil
		}
		log.Debug().Str("unit", u.Name).Str("url", u.URL()).Msg("waiting for readiness")
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fleet: %s not ready within %s", u.Name, u.StartupTimeout)
		case <-ticker.C:
		}
	}
}

func (p *Prober) probeOnce(ctx context.Context, u *Unit, timeout time.Duration) bool {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.URL(), nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
