package fleet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/oio/domestic-ai/internal/config"
	"github.com/oio/domestic-ai/internal/testutil/testlog"
)

func TestUnitURLNormalizesHostAndEndpoint(t *testing.T) {
	testlog.Start(t)

	u := &Unit{Name: "api", Kind: KindHTTP, Host: "0.0.0.0", Port: 8000, Endpoint: "/api_endpoints"}
	if got := u.URL(); got != "http://localhost:8000/api_endpoints" {
		t.Fatalf("unexpected url: %s", got)
	}

	u = &Unit{Name: "tools", Kind: KindHTTP, Host: "node-b", Port: 8800, Endpoint: "status"}
	if got := u.URL(); got != "http://node-b:8800/status" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestUnitClassification(t *testing.T) {
	bot := &Unit{Name: "bot", Kind: KindProcess}
	if bot.Probeable() {
		t.Fatalf("process unit must not be probeable")
	}
	if !bot.Managed() {
		t.Fatalf("process unit must be managed")
	}

	ollama := &Unit{Name: "ollama", Kind: KindExternal, Port: 11434}
	if !ollama.Probeable() {
		t.Fatalf("external unit must be probeable")
	}
	if ollama.Managed() {
		t.Fatalf("external unit must not be managed")
	}
}

func TestUnitsFromConfigResolvesLaunchers(t *testing.T) {
	testlog.Start(t)

	cfg := config.DefaultConfig()
	cfg.Root = "/srv/domestic"
	units, err := UnitsFromConfig(cfg)
	if err != nil {
		t.Fatalf("units from config: %v", err)
	}
	if len(units) != len(cfg.Services) {
		t.Fatalf("expected %d units, got %d", len(cfg.Services), len(units))
	}
	for _, u := range units {
		if u.Kind == KindExternal {
			continue
		}
		want := filepath.Join("/srv/domestic")
		if !filepath.IsAbs(u.Launcher) || u.Launcher[:len(want)] != want {
			t.Fatalf("launcher not resolved under root: %s", u.Launcher)
		}
		if u.StartupTimeout <= 0 {
			t.Fatalf("unit %s missing startup timeout", u.Name)
		}
	}
}

func TestUnitsFromConfigRequiresRootForRelativeLaunchers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Root = ""
	if _, err := UnitsFromConfig(cfg); err == nil {
		t.Fatalf("expected root-required error")
	}
}

func TestUnitsFromConfigKeepsRemoteLauncherRelative(t *testing.T) {
	cfg := config.Config{
		Root: "/srv/domestic",
		Services: []config.ServiceConfig{{
			Name: "tools", Kind: config.KindHTTP, Host: "node-b", Port: 8800,
			Endpoint: "/", Launcher: "run-tools.command",
			StartupTimeout: config.Duration{Duration: 30 * time.Second},
			Remote:         &config.SSHConfig{Host: "node-b", User: "oio"},
		}},
	}
	units, err := UnitsFromConfig(cfg)
	if err != nil {
		t.Fatalf("units from config: %v", err)
	}
	if units[0].Launcher != "run-tools.command" {
		t.Fatalf("remote launcher should stay as configured, got %s", units[0].Launcher)
	}
	if units[0].Remote == nil || units[0].Remote.Host != "node-b" {
		t.Fatalf("remote spec not carried over")
	}
}
