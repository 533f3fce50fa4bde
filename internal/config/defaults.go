package config

import (
	"path/filepath"
	"time"
)

// DefaultConfig returns the documented domestic-ai fleet. Launcher paths are
// relative to the fleet root and resolved at launch time.
func DefaultConfig() Config {
	return Config{
		Name:        "domesticd",
		AdminAddr:   ":9090",
		CorsOrigins: []string{"http://localhost:3000"},
		SignalGrace: Duration{2 * time.Second},
		StopGrace:   Duration{5 * time.Second},
		Services: []ServiceConfig{
			{
				Name:           "ollama",
				Kind:           KindExternal,
				Host:           "localhost",
				Port:           11434,
				Endpoint:       "/",
				StartupTimeout: Duration{10 * time.Second},
			},
			{
				Name:           "api",
				Kind:           KindHTTP,
				Host:           "0.0.0.0",
				Port:           8000,
				Endpoint:       "/api_endpoints",
				Launcher:       filepath.Join("domestic-api", "run-api.command"),
				StartupTimeout: Duration{60 * time.Second},
				Critical:       true,
			},
			{
				Name:           "tools",
				Kind:           KindHTTP,
				Host:           "localhost",
				Port:           8800,
				Endpoint:       "/",
				Launcher:       filepath.Join("domestic-tools", "run-tools.command"),
				StartupTimeout: Duration{60 * time.Second},
			},
			{
				Name:           "imagen",
				Kind:           KindHTTP,
				Host:           "localhost",
				Port:           8042,
				Endpoint:       "/queue-status",
				Launcher:       filepath.Join("domestic-tools", "domestic-imagen", "run-imagen.command"),
				StartupTimeout: Duration{60 * time.Second},
			},
			{
				Name:           "rembg",
				Kind:           KindHTTP,
				Host:           "localhost",
				Port:           8008,
				Endpoint:       "/",
				Launcher:       filepath.Join("domestic-tools", "domestic-rembg", "run-rembg.command"),
				StartupTimeout: Duration{60 * time.Second},
			},
			{
				Name:           "bot",
				Kind:           KindProcess,
				Launcher:       filepath.Join("domestic-bot", "run-bot.command"),
				StartupTimeout: Duration{60 * time.Second},
				Match:          []string{"bot.py", "run-bot.command"},
			},
		},
	}
}
