package supervise

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oio/domestic-ai/internal/fleet"
	"github.com/oio/domestic-ai/internal/journal"
	"github.com/oio/domestic-ai/internal/launcher"
	"github.com/oio/domestic-ai/internal/observability"
)

var (
	ErrUnknownUnit   = errors.New("supervise: unknown unit")
	ErrUnmanagedUnit = errors.New("supervise: unit is not managed")
	ErrCriticalDown  = errors.New("supervise: critical unit unavailable")
)

// Prober is the readiness-check surface the orchestrator consumes.
type Prober interface {
	Ready(ctx context.Context, u *fleet.Unit, timeout time.Duration) bool
	Check(ctx context.Context, u *fleet.Unit) bool
	WaitReady(ctx context.Context, u *fleet.Unit, interval time.Duration) error
}

// Guard is the port/process eviction surface.
type Guard interface {
	Evict(ctx context.Context, port int, grace time.Duration) (int32, error)
	Sweep(ctx context.Context, patterns []string, grace time.Duration) ([]int32, error)
}

// Config tunes orchestration behavior.
type Config struct {
	Root           string
	LogDir         string
	SignalGrace    time.Duration
	StopGrace      time.Duration
	ProbeInterval  time.Duration
	ProcessGrace   time.Duration
	EnsureAttempts int
	Restart        RestartPolicy
}

func (c Config) withDefaults() Config {
	if c.SignalGrace <= 0 {
		c.SignalGrace = 2 * time.Second
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 5 * time.Second
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 2 * time.Second
	}
	if c.ProcessGrace <= 0 {
		c.ProcessGrace = 5 * time.Second
	}
	if c.EnsureAttempts <= 0 {
		c.EnsureAttempts = 5
	}
	if c.Restart.Base <= 0 {
		c.Restart = DefaultRestartPolicy()
	}
	return c
}

// UnitStatus is a read-only projection of one unit's supervision state.
type UnitStatus struct {
	Name     string      `json:"name"`
	Kind     fleet.Kind  `json:"kind"`
	State    fleet.State `json:"state"`
	Critical bool        `json:"critical"`
	Port     int         `json:"port,omitempty"`
	URL      string      `json:"url,omitempty"`
	PID      int         `json:"pid,omitempty"`
	ReadyAt  time.Time   `json:"ready_at,omitzero"`
	Restarts int         `json:"restarts"`
	LastErr  string      `json:"last_error,omitempty"`
}

type unitState struct {
	state   fleet.State
	proc    Process
	readyAt time.Time
	lastErr error
	tracker *restartTracker
}

// Orchestrator owns the fleet's desired/observed state and all lifecycle
// transitions.
type Orchestrator struct {
	reg     *fleet.Registry
	prober  Prober
	guard   Guard
	starter Starter
	journal journal.Recorder
	cfg     Config

	mu     sync.RWMutex
	states map[string]*unitState
}

// New wires an orchestrator over a populated registry. Nil dependencies get
// working defaults.
func New(reg *fleet.Registry, cfg Config, prober Prober, guard Guard, starter Starter, rec journal.Recorder) *Orchestrator {
	cfg = cfg.withDefaults()
	if prober == nil {
		prober = fleet.NewProber()
	}
	if guard == nil {
		guard = fleet.NewPortGuard()
	}
	if starter == nil {
		starter = LocalStarter{LogDir: cfg.LogDir}
	}
	if rec == nil {
		rec = journal.Discard{}
	}
	o := &Orchestrator{
		reg:     reg,
		prober:  prober,
		guard:   guard,
		starter: starter,
		journal: rec,
		cfg:     cfg,
		states:  make(map[string]*unitState),
	}
	for _, u := range reg.All() {
		o.states[u.Name] = &unitState{
			state:   fleet.StatePending,
			tracker: newRestartTracker(cfg.Restart),
		}
	}
	return o
}

func (o *Orchestrator) unit(name string) (*fleet.Unit, *unitState, error) {
	u, ok := o.reg.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownUnit, name)
	}
	o.mu.RLock()
	st := o.states[name]
	o.mu.RUnlock()
	return u, st, nil
}

func (o *Orchestrator) setState(u *fleet.Unit, to fleet.State, detail string) {
	o.mu.Lock()
	st := o.states[u.Name]
	from := st.state
	st.state = to
	if to == fleet.StateReady {
		st.readyAt = time.Now()
	}
	o.mu.Unlock()

	if from == to {
		return
	}
	observability.SetUnitUp(u.Name, to == fleet.StateReady)
	if err := o.journal.RecordTransition(u.Name, string(from), string(to), detail); err != nil {
		log.Error().Err(err).Str("unit", u.Name).Msg("journal transition failed")
	}
	log.Info().
		Str("unit", u.Name).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("detail", detail).
		Msg("unit transition")
}

func (o *Orchestrator) setErr(u *fleet.Unit, err error) {
	o.mu.Lock()
	o.states[u.Name].lastErr = err
	o.mu.Unlock()
}

// Ensure brings one unit to ready: probe first, then evict any port
// squatter and launch. External units are only probed.
func (o *Orchestrator) Ensure(ctx context.Context, name string) error {
	u, st, err := o.unit(name)
	if err != nil {
		return err
	}

	if u.Probeable() {
		for attempt := 0; attempt < o.cfg.EnsureAttempts; attempt++ {
			if o.prober.Check(ctx, u) {
				o.setState(u, fleet.StateReady, "already running")
				st.tracker.reset()
				return nil
			}
			if attempt < o.cfg.EnsureAttempts-1 {
				log.Info().
					Str("unit", u.Name).
					Int("attempt", attempt+1).
					Int("max", o.cfg.EnsureAttempts).
					Msg("unit not available, waiting")
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(o.cfg.ProbeInterval):
				}
			}
		}
	}

	if !u.Managed() {
		err := fmt.Errorf("supervise: external unit %s not reachable at %s", u.Name, u.URL())
		o.setErr(u, err)
		o.setState(u, fleet.StateDegraded, "external endpoint unreachable")
		return err
	}

	if u.Port > 0 && u.Remote == nil {
		pid, err := o.guard.Evict(ctx, u.Port, o.cfg.StopGrace)
		if err != nil {
			log.Error().Err(err).Str("unit", u.Name).Int("port", u.Port).Msg("eviction failed")
		} else if pid != 0 {
			observability.RecordPortEviction(u.Name, u.Port)
			if jerr := o.journal.RecordEviction(u.Name, u.Port, pid, ""); jerr != nil {
				log.Error().Err(jerr).Str("unit", u.Name).Msg("journal eviction failed")
			}
		}
	}

	return o.start(ctx, u, st)
}

func (o *Orchestrator) start(ctx context.Context, u *fleet.Unit, st *unitState) error {
	o.setState(u, fleet.StateStarting, "launching "+u.Launcher)

	proc, err := o.starter.Start(u)
	if err != nil {
		observability.RecordUnitStart(u.Name, "error")
		o.setErr(u, err)
		o.setState(u, fleet.StateFailed, err.Error())
		return err
	}
	o.mu.Lock()
	st.proc = proc
	o.mu.Unlock()

	if u.Kind == fleet.KindProcess {
		return o.awaitProcess(ctx, u, st, proc)
	}
	return o.awaitReady(ctx, u, st, proc)
}

// awaitProcess gives a portless unit a grace period and then judges it by
// whether it is still alive.
func (o *Orchestrator) awaitProcess(ctx context.Context, u *fleet.Unit, st *unitState, proc Process) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-proc.Done():
		code, _ := proc.ExitCode()
		err := fmt.Errorf("supervise: %s exited prematurely with code %d%s", u.Name, code, logTailSuffix(proc))
		observability.RecordUnitStart(u.Name, "error")
		o.setErr(u, err)
		o.setState(u, fleet.StateFailed, err.Error())
		return err
	case <-time.After(o.cfg.ProcessGrace):
	}
	observability.RecordUnitStart(u.Name, "ok")
	o.setState(u, fleet.StateReady, fmt.Sprintf("pid %d", proc.Pid()))
	st.tracker.reset()
	return nil
}

// awaitReady polls the unit endpoint until ready, aborting early when the
// launched process exits.
func (o *Orchestrator) awaitReady(ctx context.Context, u *fleet.Unit, st *unitState, proc Process) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	readyErr := make(chan error, 1)
	go func() {
		readyErr <- o.prober.WaitReady(waitCtx, u, o.cfg.ProbeInterval)
	}()

	select {
	case <-proc.Done():
		cancel()
		<-readyErr
		code, _ := proc.ExitCode()
		err := fmt.Errorf("supervise: %s exited with code %d before becoming ready%s", u.Name, code, logTailSuffix(proc))
		observability.RecordUnitStart(u.Name, "error")
		o.setErr(u, err)
		o.setState(u, fleet.StateFailed, err.Error())
		return err
	case err := <-readyErr:
		if err != nil {
			observability.RecordUnitStart(u.Name, "timeout")
			o.setErr(u, err)
			o.setState(u, fleet.StateDegraded, err.Error())
			return err
		}
	}

	observability.RecordUnitStart(u.Name, "ok")
	o.setState(u, fleet.StateReady, u.URL())
	st.tracker.reset()
	return nil
}

func logTailSuffix(proc Process) string {
	_, stderrPath := proc.LogPaths()
	tail := launcher.TailFile(stderrPath, 512)
	if tail == "" {
		return ""
	}
	return "; stderr: " + tail
}

// Stop stops one managed unit.
func (o *Orchestrator) Stop(ctx context.Context, name string) error {
	u, st, err := o.unit(name)
	if err != nil {
		return err
	}
	if !u.Managed() {
		return fmt.Errorf("%w: %s", ErrUnmanagedUnit, name)
	}
	return o.stopUnit(ctx, u, st)
}

func (o *Orchestrator) stopUnit(ctx context.Context, u *fleet.Unit, st *unitState) error {
	o.mu.Lock()
	proc := st.proc
	st.proc = nil
	o.mu.Unlock()

	var err error
	switch {
	case proc != nil:
		err = proc.Stop(o.cfg.StopGrace)
	case u.Port > 0 && u.Remote == nil:
		// Unit was adopted, not launched by us; evict by port.
		_, err = o.guard.Evict(ctx, u.Port, o.cfg.StopGrace)
	case len(u.Match) > 0:
		_, err = o.guard.Sweep(ctx, u.Match, o.cfg.StopGrace)
	}

	if err != nil {
		observability.RecordUnitStop(u.Name, "error")
		o.setErr(u, err)
		return fmt.Errorf("supervise: stop %s: %w", u.Name, err)
	}
	observability.RecordUnitStop(u.Name, "ok")
	o.setState(u, fleet.StateStopped, "")
	return nil
}

// Restart stops and re-ensures one unit.
func (o *Orchestrator) Restart(ctx context.Context, name string) error {
	if err := o.Stop(ctx, name); err != nil {
		return err
	}
	return o.Ensure(ctx, name)
}

// Snapshot returns the status of every unit in bring-up order.
func (o *Orchestrator) Snapshot() []UnitStatus {
	units := o.reg.All()
	out := make([]UnitStatus, 0, len(units))
	for _, u := range units {
		out = append(out, o.statusOf(u))
	}
	return out
}

// SnapshotUnit returns the status of one unit.
func (o *Orchestrator) SnapshotUnit(name string) (UnitStatus, bool) {
	u, ok := o.reg.Get(name)
	if !ok {
		return UnitStatus{}, false
	}
	return o.statusOf(u), true
}

func (o *Orchestrator) statusOf(u *fleet.Unit) UnitStatus {
	o.mu.RLock()
	st := o.states[u.Name]
	status := UnitStatus{
		Name:     u.Name,
		Kind:     u.Kind,
		State:    st.state,
		Critical: u.Critical,
		Port:     u.Port,
		ReadyAt:  st.readyAt,
		Restarts: st.tracker.failureCount(),
	}
	if u.Probeable() {
		status.URL = u.URL()
	}
	if st.proc != nil {
		status.PID = st.proc.Pid()
	}
	if st.lastErr != nil {
		status.LastErr = st.lastErr.Error()
	}
	o.mu.RUnlock()
	return status
}

func joinNames(units []*fleet.Unit) string {
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name)
	}
	return strings.Join(names, ",")
}
