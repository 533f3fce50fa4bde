package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment keys recognized on top of the manifest. DOMESTIC_AI_PATH is the
// historical fleet root variable shared with the sibling services.
const (
	keyRoot      = "domestic_ai_path"
	keyName      = "domestic_name"
	keyAdminAddr = "domestic_admin_addr"
	keyJournal   = "domestic_journal_path"
)

// applyEnvOverrides layers process environment over .env files over the
// manifest. Precedence: env vars, then a .env next to the working directory,
// then a .env under the configured fleet root.
func applyEnvOverrides(cfg *Config) error {
	k := koanf.New(".")

	for _, path := range dotenvCandidates(cfg.Root) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), dotenv.ParserEnv("", ".", strings.ToLower)); err != nil {
			return fmt.Errorf("dotenv load failed (%s): %w", path, err)
		}
	}

	if err := k.Load(env.Provider("DOMESTIC_", ".", strings.ToLower), nil); err != nil {
		return fmt.Errorf("env load failed: %w", err)
	}

	if v := strings.TrimSpace(k.String(keyRoot)); v != "" {
		cfg.Root = v
	}
	if v := strings.TrimSpace(k.String(keyName)); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(k.String(keyAdminAddr)); v != "" {
		cfg.AdminAddr = v
	}
	if v := strings.TrimSpace(k.String(keyJournal)); v != "" {
		cfg.JournalPath = v
	}
	return nil
}

// dotenvCandidates returns files in load order, lowest precedence first.
func dotenvCandidates(root string) []string {
	out := []string{}
	if strings.TrimSpace(root) != "" {
		out = append(out, filepath.Join(root, ".env"))
	}
	return append(out, ".env")
}
