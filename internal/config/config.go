// Package config provides configuration loading and structs for the examchat server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogFile   string          `yaml:"log_file"`
	Server    ServerConfig    `yaml:"server"`
	Documents DocumentsConfig `yaml:"documents"`
	Chat      ChatConfig      `yaml:"chat"`
	Storage   StorageConfig   `yaml:"storage"`
	Secrets   SecretsConfig   `yaml:"secrets"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// DocumentEntry is one logical document of the manifest.
type DocumentEntry struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// DocumentsConfig holds the document manifest and corpus limits.
type DocumentsConfig struct {
	Manifest []DocumentEntry `yaml:"manifest"`
	// MaxChars is the hard cutoff applied to the combined corpus text.
	MaxChars int `yaml:"max_chars"`
	// Watch invalidates the cached corpus when a manifest file changes on disk.
	Watch     bool `yaml:"watch"`
	CacheSize int  `yaml:"cache_size"`
}

// ChatConfig holds chat-completion endpoint and sampling defaults.
type ChatConfig struct {
	Endpoint            string        `yaml:"endpoint"`
	Model               string        `yaml:"model"`
	Models              []string      `yaml:"models"`
	Temperature         *float64      `yaml:"temperature"`
	MaxTokens           int           `yaml:"max_tokens"`
	Timeout             time.Duration `yaml:"timeout"`
	ContextChars        int           `yaml:"context_chars"`
	SummaryContextChars int           `yaml:"summary_context_chars"`
}

// TemperatureOrDefault returns the configured temperature; 0.3 when unset.
func (c *ChatConfig) TemperatureOrDefault() float64 {
	if c.Temperature != nil {
		return *c.Temperature
	}
	return 0.3
}

// StorageConfig holds the path of the export archive.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SecretsConfig controls where the API key is looked up.
type SecretsConfig struct {
	Dir    string `yaml:"dir"`
	EnvVar string `yaml:"env_var"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Secrets.Dir = expandPath(cfg.Secrets.Dir, configDir)
	if cfg.LogFile != "" {
		cfg.LogFile = expandPath(cfg.LogFile, configDir)
	}
	for i := range cfg.Documents.Manifest {
		cfg.Documents.Manifest[i].Path = expandDocumentPath(cfg.Documents.Manifest[i].Path, configDir)
	}

	return &cfg, nil
}

// Validate reports configuration values that defaults cannot repair.
func Validate(cfg *Config) error {
	t := cfg.Chat.TemperatureOrDefault()
	if t < 0 || t > 1 {
		return fmt.Errorf("invalid config: chat.temperature %.2f outside [0,1]", t)
	}
	if cfg.Chat.MaxTokens < 0 {
		return fmt.Errorf("invalid config: chat.max_tokens must be positive")
	}
	seen := make(map[string]bool, len(cfg.Documents.Manifest))
	for _, d := range cfg.Documents.Manifest {
		if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Path) == "" {
			return fmt.Errorf("invalid config: manifest entries need a name and a path")
		}
		if seen[d.Name] {
			return fmt.Errorf("invalid config: duplicate manifest name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

// expandDocumentPath resolves manifest paths. Documents ship next to the config, so every
// relative path is taken relative to configDir.
func expandDocumentPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}
