package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Kind names accepted for a service entry.
const (
	KindHTTP     = "http"
	KindProcess  = "process"
	KindExternal = "external"
)

// Duration wraps time.Duration for TOML decoding of values like "60s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the supervisor fleet manifest.
type Config struct {
	Name        string          `toml:"name"`
	Root        string          `toml:"root"`
	AdminAddr   string          `toml:"admin_addr"`
	CorsOrigins []string        `toml:"cors_origins"`
	JournalPath string          `toml:"journal_path"`
	SignalGrace Duration        `toml:"signal_grace"`
	StopGrace   Duration        `toml:"stop_grace"`
	Services    []ServiceConfig `toml:"services"`
}

// ServiceConfig describes one fleet unit.
type ServiceConfig struct {
	Name           string     `toml:"name"`
	Kind           string     `toml:"kind"`
	Host           string     `toml:"host"`
	Port           int        `toml:"port"`
	Endpoint       string     `toml:"endpoint"`
	Launcher       string     `toml:"launcher"`
	StartupTimeout Duration   `toml:"startup_timeout"`
	Critical       bool       `toml:"critical"`
	Match          []string   `toml:"match"`
	Remote         *SSHConfig `toml:"remote"`
}

// SSHConfig targets a unit launcher at a remote host.
type SSHConfig struct {
	Host           string `toml:"host"`
	Port           string `toml:"port"`
	User           string `toml:"user"`
	KeyPath        string `toml:"key_path"`
	KnownHostsPath string `toml:"known_hosts_path"`
	Insecure       bool   `toml:"insecure"`
}

// Load reads the manifest at path, falls back to defaults for unset fields,
// applies environment and .env overrides, and validates the result.
// An empty path yields the default fleet plus environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		if err := loadToml(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	fillServiceDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func fillServiceDefaults(cfg *Config) {
	if cfg.SignalGrace.Duration <= 0 {
		cfg.SignalGrace.Duration = 2 * time.Second
	}
	if cfg.StopGrace.Duration <= 0 {
		cfg.StopGrace.Duration = 5 * time.Second
	}
	for i := range cfg.Services {
		svc := &cfg.Services[i]
		if svc.Kind == "" {
			svc.Kind = KindHTTP
		}
		if svc.Host == "" && svc.Kind != KindProcess {
			svc.Host = "localhost"
		}
		if svc.Endpoint == "" && svc.Kind != KindProcess {
			svc.Endpoint = "/"
		}
		if svc.StartupTimeout.Duration <= 0 {
			svc.StartupTimeout.Duration = 60 * time.Second
		}
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("config missing name")
	}
	if strings.TrimSpace(cfg.AdminAddr) == "" {
		return fmt.Errorf("config missing admin_addr")
	}
	seenNames := make(map[string]bool, len(cfg.Services))
	seenPorts := make(map[int]string, len(cfg.Services))
	for i, svc := range cfg.Services {
		if err := ValidateServiceEntry(svc); err != nil {
			return fmt.Errorf("service[%d] invalid: %w", i, err)
		}
		if seenNames[svc.Name] {
			return fmt.Errorf("service[%d] invalid: duplicate name %q", i, svc.Name)
		}
		seenNames[svc.Name] = true
		if svc.Port != 0 {
			if other, ok := seenPorts[svc.Port]; ok {
				return fmt.Errorf("service[%d] invalid: port %d already claimed by %q", i, svc.Port, other)
			}
			seenPorts[svc.Port] = svc.Name
		}
	}
	return nil
}

func ValidateServiceEntry(svc ServiceConfig) error {
	if strings.TrimSpace(svc.Name) == "" {
		return fmt.Errorf("name is required")
	}
	switch svc.Kind {
	case KindHTTP:
		if svc.Port <= 0 || svc.Port > 65535 {
			return fmt.Errorf("http service requires a valid port, got %d", svc.Port)
		}
		if strings.TrimSpace(svc.Launcher) == "" {
			return fmt.Errorf("http service requires a launcher path")
		}
	case KindProcess:
		if strings.TrimSpace(svc.Launcher) == "" {
			return fmt.Errorf("process service requires a launcher path")
		}
		if len(svc.Match) == 0 {
			return fmt.Errorf("process service requires match patterns for shutdown sweep")
		}
	case KindExternal:
		if svc.Port <= 0 || svc.Port > 65535 {
			return fmt.Errorf("external service requires a valid port, got %d", svc.Port)
		}
		if strings.TrimSpace(svc.Launcher) != "" {
			return fmt.Errorf("external service must not declare a launcher")
		}
	default:
		return fmt.Errorf("unknown kind %q", svc.Kind)
	}
	if svc.Remote != nil {
		if strings.TrimSpace(svc.Remote.Host) == "" {
			return fmt.Errorf("remote host is required")
		}
		if strings.TrimSpace(svc.Remote.User) == "" {
			return fmt.Errorf("remote user is required")
		}
	}
	return nil
}
