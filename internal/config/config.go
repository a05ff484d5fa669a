package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	ProjectRoot     string   `yaml:"project_root"`
	StateDir        string   `yaml:"state_dir"`
	DBPath          string   `yaml:"db_path"`
	HardCap         int      `yaml:"hard_cap"`
	SoftLimit       int      `yaml:"soft_limit"`
	InterruptTypes  []string `yaml:"interrupt_types"`
	LogLevel        string   `yaml:"log_level"`
	Output          string   `yaml:"output"`
	DefaultPlatform string   `yaml:"default_platform"`
	WatchDebounceMS int      `yaml:"watch_debounce_ms"`
}

const defaultStateDir = ".specweave"

func defaults() *Config {
	return &Config{
		StateDir:        defaultStateDir,
		HardCap:         2,
		SoftLimit:       1,
		InterruptTypes:  []string{"hotfix", "bug"},
		LogLevel:        "info",
		Output:          "table",
		WatchDebounceMS: 500,
	}
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. <project>/.specweave/config.yaml
// 4. ~/.config/incsync/config.yaml
func Load() (*Config, error) {
	return LoadAt("")
}

// LoadAt is Load with the project root fixed to root, as the --root flag
// does. An empty root falls back to discovery.
func LoadAt(root string) (*Config, error) {
	cfg := defaults()

	// godotenv never overrides variables already set in the environment
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// user config is optional
	_ = loadUserConfig(cfg)

	if root == "" {
		root = os.Getenv("INCSYNC_PROJECT_ROOT")
	}
	if root == "" {
		root = cfg.ProjectRoot
	}
	if root == "" {
		root = findProjectRoot(stateDirHint(cfg))
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = cwd
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	cfg.ProjectRoot = root

	if err := loadProjectConfig(cfg); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.ProjectRoot, cfg.StateDir, "state", "ledger.db")
	}
	return cfg, nil
}

func stateDirHint(cfg *Config) string {
	if dir := os.Getenv("INCSYNC_STATE_DIR"); dir != "" {
		return dir
	}
	return cfg.StateDir
}

func applyEnv(cfg *Config) error {
	if dbPath := getEnvOrFile("INCSYNC_DB_PATH", "INCSYNC_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = strings.TrimSpace(dbPath)
	}
	if stateDir := os.Getenv("INCSYNC_STATE_DIR"); stateDir != "" {
		cfg.StateDir = stateDir
	}
	if logLevel := os.Getenv("INCSYNC_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if output := os.Getenv("INCSYNC_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if platform := os.Getenv("INCSYNC_PLATFORM"); platform != "" {
		cfg.DefaultPlatform = platform
	}
	if types := os.Getenv("INCSYNC_INTERRUPT_TYPES"); types != "" {
		cfg.InterruptTypes = splitList(types)
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"INCSYNC_HARD_CAP", &cfg.HardCap},
		{"INCSYNC_SOFT_LIMIT", &cfg.SoftLimit},
		{"INCSYNC_WATCH_DEBOUNCE_MS", &cfg.WatchDebounceMS},
	}
	for _, v := range ints {
		raw := os.Getenv(v.env)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s: %q", v.env, raw)
		}
		*v.dst = n
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadUserConfig loads configuration from ~/.config/incsync/config.yaml
func loadUserConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "incsync", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadProjectConfig overlays <root>/<state_dir>/config.yaml. Unlike the user
// file a broken project file is an error, since it is checked in next to the
// increments it governs.
func loadProjectConfig(cfg *Config) error {
	path := filepath.Join(cfg.ProjectRoot, stateDirHint(cfg), "config.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	root := cfg.ProjectRoot
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.ProjectRoot = root
	return nil
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return string(data)
		}
	}

	return ""
}

// findUp walks from cwd towards the filesystem root, stopping after the
// user's home directory, and returns the first directory for which match
// reports true.
func findUp(match func(dir string) bool) string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	homeDir, err := os.UserHomeDir()
	if err == nil {
		homeDir = filepath.Clean(homeDir)
	}

	dir := filepath.Clean(cwd)
	for {
		if match(dir) {
			return dir
		}
		if dir == homeDir {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Returns the path, or empty string if not found.
func findEnvLocal() string {
	dir := findUp(func(dir string) bool {
		_, err := os.Stat(filepath.Join(dir, ".env.local"))
		return err == nil
	})
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, ".env.local")
}

// findProjectRoot returns the nearest directory holding stateDir/increments
func findProjectRoot(stateDir string) string {
	return findUp(func(dir string) bool {
		info, err := os.Stat(filepath.Join(dir, stateDir, "increments"))
		return err == nil && info.IsDir()
	})
}
