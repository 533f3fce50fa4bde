package supervise

import (
	"fmt"
	"time"

	"github.com/oio/domestic-ai/internal/fleet"
	"github.com/oio/domestic-ai/internal/launcher"
)

// Process is the supervisor's handle on one launched unit.
type Process interface {
	Pid() int
	Running() bool
	ExitCode() (int32, bool)
	Done() <-chan struct{}
	Stop(grace time.Duration) error
	LogPaths() (stdout, stderr string)
}

// Starter launches a unit's configured launcher.
type Starter interface {
	Start(u *fleet.Unit) (Process, error)
}

// LocalStarter launches units on this host, or over SSH for units with a
// remote spec.
type LocalStarter struct {
	LogDir string
}

func (s LocalStarter) Start(u *fleet.Unit) (Process, error) {
	if u.Remote != nil {
		runner := launcher.SSHRunner{
			Host:                        u.Remote.Host,
			Port:                        u.Remote.Port,
			User:                        u.Remote.User,
			KeyPath:                     u.Remote.KeyPath,
			KnownHostsPath:              u.Remote.KnownHostsPath,
			InsecureSkipHostKeyChecking: u.Remote.Insecure,
			Timeout:                     10 * time.Second,
		}
		if err := runner.StartDetached(u.Launcher); err != nil {
			return nil, fmt.Errorf("supervise: remote start %s: %w", u.Name, err)
		}
		return remoteProcess{runner: runner, match: u.Match}, nil
	}

	h, err := launcher.Launch(launcher.LaunchSpec{
		Name:   u.Name,
		Script: u.Launcher,
		LogDir: s.LogDir,
	})
	if err != nil {
		return nil, err
	}
	return localProcess{h: h}, nil
}

type localProcess struct {
	h *launcher.Handle
}

func (p localProcess) Pid() int                   { return p.h.PID }
func (p localProcess) Running() bool              { return p.h.Running() }
func (p localProcess) ExitCode() (int32, bool)    { return p.h.ExitCode() }
func (p localProcess) Done() <-chan struct{}      { return p.h.Done() }
func (p localProcess) Stop(g time.Duration) error { return p.h.Stop(g) }
func (p localProcess) LogPaths() (string, string) { return p.h.StdoutPath, p.h.StderrPath }

// remoteProcess is a fire-and-forget remote launch. Exit status is not
// observable over the detached session; readiness probing decides health.
type remoteProcess struct {
	runner launcher.SSHRunner
	match  []string
}

func (p remoteProcess) Pid() int                { return 0 }
func (p remoteProcess) Running() bool           { return true }
func (p remoteProcess) ExitCode() (int32, bool) { return 0, false }
func (p remoteProcess) Done() <-chan struct{}   { return nil }

func (p remoteProcess) Stop(grace time.Duration) error {
	for _, pattern := range p.match {
		if _, err := p.runner.Run("pkill", "-f", pattern); err != nil {
			// pkill exits 1 when nothing matched; treat any error as
			// already-stopped and keep going.
			continue
		}
	}
	return nil
}

func (p remoteProcess) LogPaths() (string, string) { return "", "" }
