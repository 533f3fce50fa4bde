package fleet

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

// PortGuard locates and evicts host processes that hold a unit's port or
// match a unit's cmdline patterns. The supervisor's own process is never a
// target.
type PortGuard struct {
	self int32
}

func NewPortGuard() *PortGuard {
	return &PortGuard{self: int32(os.Getpid())}
}

// FindByPort returns a process listening on the given TCP port, or nil.
func (g *PortGuard) FindByPort(port int) (*process.Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("portguard: list processes: %w", err)
	}
	for _, p := range procs {
		if p.Pid == g.self {
			continue
		}
		conns, err := p.Connections()
		if err != nil {
			continue
		}
		for _, conn := range conns {
			if conn.Laddr.Port == uint32(port) && conn.Status == "LISTEN" {
				return p, nil
			}
		}
	}
	return nil, nil
}

// Evict terminates whatever process holds the port, escalating to SIGKILL
// after the grace period. Returns the evicted PID, or 0 if the port was
// free.
func (g *PortGuard) Evict(ctx context.Context, port int, grace time.Duration) (int32, error) {
	p, err := g.FindByPort(port)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, nil
	}
	cmdline, _ := p.Cmdline()
	log.Warn().
		Int("port", port).
		Int32("pid", p.Pid).
		Str("cmdline", cmdline).
		Msg("port already held, evicting")
	if err := g.terminateWait(ctx, p, grace); err != nil {
		return p.Pid, err
	}
	return p.Pid, nil
}

// Sweep terminates every process whose cmdline contains one of the
// patterns. Used to catch lingering portless units after shutdown.
func (g *PortGuard) Sweep(ctx context.Context, patterns []string, grace time.Duration) ([]int32, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("portguard: list processes: %w", err)
	}
	var swept []int32
	for _, p := range procs {
		if p.Pid == g.self {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if !MatchesCmdline(cmdline, patterns) {
			continue
		}
		log.Info().Int32("pid", p.Pid).Str("cmdline", cmdline).Msg("sweeping lingering process")
		if err := g.terminateWait(ctx, p, grace); err != nil {
			log.Error().Err(err).Int32("pid", p.Pid).Msg("sweep failed")
			continue
		}
		swept = append(swept, p.Pid)
	}
	return swept, nil
}

func (g *PortGuard) terminateWait(ctx context.Context, p *process.Process, grace time.Duration) error {
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("portguard: terminate pid %d: %w", p.Pid, err)
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		running, err := p.IsRunning()
		if err != nil || !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("portguard: kill pid %d: %w", p.Pid, err)
	}
	return nil
}

// MatchesCmdline reports whether the cmdline contains any pattern.
func MatchesCmdline(cmdline string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if strings.Contains(cmdline, pattern) {
			return true
		}
	}
	return false
}
