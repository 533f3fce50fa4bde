package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFleet(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "domesticd", cfg.Name)
	assert.Equal(t, ":9090", cfg.AdminAddr)

	byName := make(map[string]ServiceConfig, len(cfg.Services))
	for _, svc := range cfg.Services {
		byName[svc.Name] = svc
	}

	assert.Equal(t, 11434, byName["ollama"].Port)
	assert.Equal(t, KindExternal, byName["ollama"].Kind)
	assert.Equal(t, 8000, byName["api"].Port)
	assert.Equal(t, "/api_endpoints", byName["api"].Endpoint)
	assert.True(t, byName["api"].Critical)
	assert.Equal(t, 8800, byName["tools"].Port)
	assert.Equal(t, 8042, byName["imagen"].Port)
	assert.Equal(t, "/queue-status", byName["imagen"].Endpoint)
	assert.Equal(t, 8008, byName["rembg"].Port)
	assert.Equal(t, KindProcess, byName["bot"].Kind)
	assert.Zero(t, byName["bot"].Port)
	assert.Contains(t, byName["bot"].Match, "bot.py")
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.toml")
	manifest := `
name = "homelab"
root = "/srv/domestic"
admin_addr = ":7070"
journal_path = "/srv/domestic/journal.db"
stop_grace = "8s"

[[services]]
name = "api"
kind = "http"
port = 8000
endpoint = "/api_endpoints"
launcher = "domestic-api/run-api.command"
startup_timeout = "30s"
critical = true
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "homelab", cfg.Name)
	assert.Equal(t, "/srv/domestic", cfg.Root)
	assert.Equal(t, ":7070", cfg.AdminAddr)
	assert.Equal(t, 8*time.Second, cfg.StopGrace.Duration)
	require.Len(t, cfg.Services, 1)
	assert.Equal(t, 30*time.Second, cfg.Services[0].StartupTimeout.Duration)
	assert.Equal(t, "localhost", cfg.Services[0].Host)
}

func TestEnvOverridesWinOverManifest(t *testing.T) {
	t.Setenv("DOMESTIC_AI_PATH", "/opt/domestic")
	t.Setenv("DOMESTIC_ADMIN_ADDR", ":6060")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/domestic", cfg.Root)
	assert.Equal(t, ":6060", cfg.AdminAddr)
}

func TestDotenvFileOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("DOMESTIC_JOURNAL_PATH=/tmp/journal.db\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/journal.db", cfg.JournalPath)
}

func TestValidateServiceEntry(t *testing.T) {
	tests := []struct {
		name    string
		svc     ServiceConfig
		wantErr bool
	}{
		{
			name: "valid http",
			svc: ServiceConfig{
				Name: "api", Kind: KindHTTP, Port: 8000,
				Endpoint: "/", Launcher: "run.command",
			},
		},
		{
			name:    "http missing port",
			svc:     ServiceConfig{Name: "api", Kind: KindHTTP, Launcher: "run.command"},
			wantErr: true,
		},
		{
			name:    "http missing launcher",
			svc:     ServiceConfig{Name: "api", Kind: KindHTTP, Port: 8000},
			wantErr: true,
		},
		{
			name: "valid process",
			svc: ServiceConfig{
				Name: "bot", Kind: KindProcess,
				Launcher: "run-bot.command", Match: []string{"bot.py"},
			},
		},
		{
			name:    "process missing match",
			svc:     ServiceConfig{Name: "bot", Kind: KindProcess, Launcher: "run-bot.command"},
			wantErr: true,
		},
		{
			name:    "external with launcher",
			svc:     ServiceConfig{Name: "ollama", Kind: KindExternal, Port: 11434, Launcher: "x"},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			svc:     ServiceConfig{Name: "x", Kind: "tcp", Port: 1},
			wantErr: true,
		},
		{
			name: "remote missing user",
			svc: ServiceConfig{
				Name: "tools", Kind: KindHTTP, Port: 8800, Launcher: "run.command",
				Remote: &SSHConfig{Host: "node-b"},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServiceEntry(tt.svc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConfigRejectsDuplicates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Services = append(cfg.Services, ServiceConfig{
		Name: "api2", Kind: KindHTTP, Port: 8000,
		Endpoint: "/", Launcher: "run.command",
		StartupTimeout: Duration{time.Second},
	})
	assert.ErrorContains(t, ValidateConfig(cfg), "port 8000")

	cfg = DefaultConfig()
	cfg.Services = append(cfg.Services, cfg.Services[1])
	assert.ErrorContains(t, ValidateConfig(cfg), "duplicate name")
}
