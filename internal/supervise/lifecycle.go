package supervise

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/oio/domestic-ai/internal/fleet"
	"github.com/oio/domestic-ai/internal/signalfile"
)

// Up brings the fleet up in order: critical units first and sequentially,
// then the remaining probeable units concurrently, then portless process
// units. A critical failure aborts; anything else degrades.
func (o *Orchestrator) Up(ctx context.Context) error {
	var critical, tools, procs []*fleet.Unit
	for _, u := range o.reg.All() {
		switch {
		case u.Critical:
			critical = append(critical, u)
		case u.Kind == fleet.KindProcess:
			procs = append(procs, u)
		default:
			tools = append(tools, u)
		}
	}

	log.Info().
		Str("critical", joinNames(critical)).
		Str("tools", joinNames(tools)).
		Str("process", joinNames(procs)).
		Msg("fleet bring-up")

	for _, u := range critical {
		if err := o.Ensure(ctx, u.Name); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCriticalDown, u.Name, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range tools {
		unit := u
		g.Go(func() error {
			if err := o.Ensure(gctx, unit.Name); err != nil {
				// Tool failures degrade the fleet but never abort
				// bring-up; the bot may still be useful without them.
				log.Warn().Err(err).Str("unit", unit.Name).Msg("tool unit not brought up")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, u := range procs {
		if err := o.Ensure(ctx, u.Name); err != nil {
			log.Warn().Err(err).Str("unit", u.Name).Msg("process unit not brought up")
		}
	}

	log.Info().Msg("fleet bring-up complete")
	return nil
}

// Down stops every managed unit as one operation. Portless units get the
// signal-file handshake before signals; lingering processes are swept by
// cmdline afterwards. The signal file is always removed.
func (o *Orchestrator) Down(ctx context.Context) error {
	log.Info().Msg("fleet teardown")

	var sweepPatterns []string
	usesSignal := false
	for _, u := range o.reg.All() {
		if u.Kind == fleet.KindProcess {
			usesSignal = true
			sweepPatterns = append(sweepPatterns, u.Match...)
		}
	}

	if usesSignal && o.cfg.Root != "" {
		if err := signalfile.Write(o.cfg.Root); err != nil {
			log.Error().Err(err).Msg("shutdown signal write failed")
		} else {
			defer func() {
				if err := signalfile.Remove(o.cfg.Root); err != nil {
					log.Error().Err(err).Msg("shutdown signal cleanup failed")
				}
			}()
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.SignalGrace):
			}
		}
	}

	var errs []error
	units := o.reg.All()
	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		if !u.Managed() {
			continue
		}
		o.mu.RLock()
		st := o.states[u.Name]
		o.mu.RUnlock()
		if err := o.stopUnit(ctx, u, st); err != nil {
			errs = append(errs, err)
		}
	}

	if len(sweepPatterns) > 0 {
		if swept, err := o.guard.Sweep(ctx, sweepPatterns, o.cfg.StopGrace); err != nil {
			errs = append(errs, err)
		} else if len(swept) > 0 {
			log.Info().Ints32("pids", swept).Msg("swept lingering processes")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info().Msg("fleet teardown complete")
	return nil
}

// Watch re-probes ready units and restarts failed ones within the restart
// budget. It blocks until the context is cancelled.
func (o *Orchestrator) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.watchOnce(ctx)
		}
	}
}

func (o *Orchestrator) watchOnce(ctx context.Context) {
	for _, u := range o.reg.All() {
		if ctx.Err() != nil {
			return
		}
		o.mu.RLock()
		st := o.states[u.Name]
		state := st.state
		o.mu.RUnlock()

		switch state {
		case fleet.StateReady:
			healthy := false
			if u.Probeable() {
				healthy = o.prober.Check(ctx, u)
			} else {
				o.mu.RLock()
				proc := st.proc
				o.mu.RUnlock()
				healthy = proc != nil && proc.Running()
			}
			if healthy {
				continue
			}
			if err := o.journal.RecordProbe(u.Name, false, 0, "health check failed"); err != nil {
				log.Error().Err(err).Str("unit", u.Name).Msg("journal probe failed")
			}
			o.setState(u, fleet.StateDegraded, "health check failed")
		case fleet.StateDegraded, fleet.StateFailed:
			// A unit left degraded or failed by an earlier restart
			// attempt keeps retrying until its budget runs out.
		default:
			continue
		}

		if !u.Managed() {
			continue
		}
		o.tryRestart(ctx, u, st)
	}
}

func (o *Orchestrator) tryRestart(ctx context.Context, u *fleet.Unit, st *unitState) {
	if !st.tracker.recordFailure() {
		o.setState(u, fleet.StateFailed, "restart budget exhausted")
		return
	}
	delay := st.tracker.nextDelay()
	log.Warn().
		Str("unit", u.Name).
		Dur("backoff", delay).
		Msg("unit unhealthy, restarting")
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	if err := o.Ensure(ctx, u.Name); err != nil {
		log.Error().Err(err).Str("unit", u.Name).Msg("restart failed")
	}
}
