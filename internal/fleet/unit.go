package fleet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/oio/domestic-ai/internal/config"
)

var ErrFleetRootRequired = errors.New("fleet: root path required for relative launcher")

// Kind partitions units by how the supervisor manages them.
type Kind string

const (
	// KindHTTP is launched by the supervisor and probed over HTTP.
	KindHTTP Kind = "http"
	// KindProcess is launched by the supervisor but has no HTTP surface;
	// liveness is judged by the process itself.
	KindProcess Kind = "process"
	// KindExternal is probed but never launched or stopped.
	KindExternal Kind = "external"
)

// State is the supervisor's view of one unit.
type State string

const (
	StatePending  State = "pending"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateDegraded State = "degraded"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// RemoteSpec targets a unit's launcher at another host over SSH.
type RemoteSpec struct {
	Host           string
	Port           string
	User           string
	KeyPath        string
	KnownHostsPath string
	Insecure       bool
}

// Unit is one managed fleet member.
type Unit struct {
	Name           string
	Kind           Kind
	Host           string
	Port           int
	Endpoint       string
	Launcher       string
	StartupTimeout time.Duration
	Critical       bool
	Match          []string
	Remote         *RemoteSpec
}

// URL returns the readiness probe target. The wildcard bind host is probed
// through loopback.
func (u *Unit) URL() string {
	host := u.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	endpoint := u.Endpoint
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return fmt.Sprintf("http://%s:%d%s", host, u.Port, endpoint)
}

// Probeable reports whether the unit exposes an HTTP readiness surface.
func (u *Unit) Probeable() bool {
	return u.Kind != KindProcess && u.Port > 0
}

// Managed reports whether the supervisor owns the unit's lifecycle.
func (u *Unit) Managed() bool {
	return u.Kind != KindExternal
}

// UnitsFromConfig maps manifest entries to units, resolving relative
// launcher paths under the fleet root.
func UnitsFromConfig(cfg config.Config) ([]*Unit, error) {
	out := make([]*Unit, 0, len(cfg.Services))
	for i := range cfg.Services {
		svc := cfg.Services[i]
		unit := &Unit{
			Name:           svc.Name,
			Kind:           Kind(svc.Kind),
			Host:           svc.Host,
			Port:           svc.Port,
			Endpoint:       svc.Endpoint,
			Launcher:       svc.Launcher,
			StartupTimeout: svc.StartupTimeout.Duration,
			Critical:       svc.Critical,
			Match:          append([]string{}, svc.Match...),
		}
		if svc.Remote != nil {
			unit.Remote = &RemoteSpec{
				Host:           svc.Remote.Host,
				Port:           svc.Remote.Port,
				User:           svc.Remote.User,
				KeyPath:        svc.Remote.KeyPath,
				KnownHostsPath: svc.Remote.KnownHostsPath,
				Insecure:       svc.Remote.Insecure,
			}
		}
		if unit.Launcher != "" && !filepath.IsAbs(unit.Launcher) && unit.Remote == nil {
			if strings.TrimSpace(cfg.Root) == "" {
				return nil, fmt.Errorf("%w: unit %q launcher %q", ErrFleetRootRequired, unit.Name, unit.Launcher)
			}
			unit.Launcher = filepath.Join(cfg.Root, unit.Launcher)
		}
		out = append(out, unit)
	}
	return out, nil
}
