package config

import "time"

// DefaultEndpoint is the chat-completion endpoint used when none is configured.
const DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

// DefaultManifest lists the exam documents shipped next to the config.
func DefaultManifest() []DocumentEntry {
	return []DocumentEntry{
		{Name: "Exam", Path: "2017 - Questoes.pdf"},
		{Name: "Answer key (objective)", Path: "2017 - BCC - gb.pdf"},
		{Name: "Grading rubric (discursive)", Path: "2017 - Padroes de Resposta.pdf"},
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = time.Hour
	}
	if cfg.Documents.Manifest == nil {
		cfg.Documents.Manifest = DefaultManifest()
	}
	if cfg.Documents.MaxChars == 0 {
		cfg.Documents.MaxChars = 150000
	}
	if cfg.Documents.CacheSize == 0 {
		cfg.Documents.CacheSize = 4
	}
	ApplyChatDefaults(&cfg.Chat)
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/examchat/data/exports.db"
	}
	if cfg.Secrets.Dir == "" {
		cfg.Secrets.Dir = ".examchat/secrets"
	}
	if cfg.Secrets.EnvVar == "" {
		cfg.Secrets.EnvVar = "EXAMCHAT_API_KEY"
	}
}

// ApplyChatDefaults sets default values for any zero values in c.
func ApplyChatDefaults(c *ChatConfig) {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Models == nil {
		c.Models = []string{"gpt-4", "gpt-4-turbo-preview", "gpt-3.5-turbo"}
	}
	if c.Model == "" {
		c.Model = "gpt-4"
		if len(c.Models) > 0 {
			c.Model = c.Models[0]
		}
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	// The upper bound keeps a turn interactive; it covers request and streaming together.
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.ContextChars == 0 {
		c.ContextChars = 15000
	}
	if c.SummaryContextChars == 0 {
		c.SummaryContextChars = 12000
	}
}
