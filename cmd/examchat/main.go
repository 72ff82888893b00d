// Package main is the examchat CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/examchat/internal/chat"
	"github.com/hyperjump/examchat/internal/cli"
	"github.com/hyperjump/examchat/internal/config"
	"github.com/hyperjump/examchat/internal/corpus"
	"github.com/hyperjump/examchat/internal/extract"
	"github.com/hyperjump/examchat/internal/keyword"
	"github.com/hyperjump/examchat/internal/llm"
	"github.com/hyperjump/examchat/internal/models"
	"github.com/hyperjump/examchat/internal/secrets"
	"github.com/hyperjump/examchat/internal/server"
	"github.com/hyperjump/examchat/internal/storage"
	"github.com/hyperjump/examchat/internal/watcher"
	"github.com/hyperjump/examchat/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/examchat/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is normal; variables may come from the environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "summary":
		runSummary()
	case "corpus":
		runCorpus()
	case "search":
		runSearch()
	case "key":
		runKey()
	case "version", "--version", "-v":
		fmt.Printf("examchat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (dropped stream lines, corpus loads, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLoggerWithFile(debugMode, cfg.LogFile)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Int("documents", len(cfg.Documents.Manifest)),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	status := components.Library.Corpus().Status(cfg.Chat.ContextChars)
	logger.Info("corpus loaded",
		zap.Int("loaded", status.LoadedCount),
		zap.Int("failed", status.FailedCount),
		zap.Int("chars", status.TotalChars),
		zap.Bool("truncated", status.Truncated),
	)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Documents.Watch {
		library := components.Library
		watchSvc := watcher.NewWatcher(
			library.Manifest().Paths(),
			func(path string) {
				library.Invalidate()
				logger.Info("document changed, corpus will reload", zap.String("path", path))
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Library,
		components.Searcher,
		components.Chat,
		chat.NewRegistry(cfg.Server.SessionTTL),
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func printCorpusUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: examchat corpus [flags]\n\n")
	fmt.Fprintf(fs.Output(), "Shows which exam documents loaded and how much text goes to the model.\n\n")
	fs.PrintDefaults()
}

func runCorpus() {
	fs := flag.NewFlagSet("corpus", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = load the documents directly)")
	reload := fs.Bool("reload", false, "ask the server to reload the documents (requires -server)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printCorpusUsage(fs) }
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status models.CorpusStatus
	if *serverURL != "" {
		method, path := http.MethodGet, "/api/v1/corpus"
		if *reload {
			method, path = http.MethodPost, "/api/v1/corpus/reload"
		}
		if err := callServer(method, *serverURL+path, &status); err != nil {
			fmt.Fprintf(os.Stderr, "Corpus status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		if *reload {
			fmt.Fprintln(os.Stderr, "-reload requires -server; a direct load always reads the files")
			os.Exit(1)
		}
		cfg, logger := mustLoad(*configPath)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		status = *components.Library.Corpus().Status(cfg.Chat.ContextChars)
	}
	if err := cli.WriteCorpusStatus(os.Stdout, &status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: examchat search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Finds the document pages that mention the query. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
When an exact search finds nothing, a typo-tolerant search runs automatically.

Examples:
  examchat search photosynthesis
  examchat search --document "Answer key" question 12
  examchat search --fuzzy mitocondria
`)
}

// buildQuery joins all positional args with spaces so multi-word input works the
// same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops
// at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = search the documents directly)")
	limit := fs.Int("limit", 10, "number of pages")
	document := fs.String("document", "", "only search this document (manifest name)")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	queryStr := buildQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	query := &models.SearchQuery{
		Query:    queryStr,
		Limit:    *limit,
		Document: *document,
		Fuzzy:    *fuzzy,
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		response = &models.SearchResponse{}
		if err := callServer(http.MethodGet, searchURL(*serverURL, query), response); err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger := mustLoad(*configPath)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		response, err = components.Searcher.Search(context.Background(), query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchURL(serverURL string, query *models.SearchQuery) string {
	v := url.Values{}
	v.Set("q", query.Query)
	if query.Limit > 0 {
		v.Set("limit", fmt.Sprint(query.Limit))
	}
	if query.Document != "" {
		v.Set("document", query.Document)
	}
	if query.Fuzzy {
		v.Set("fuzzy", "true")
	}
	return strings.TrimRight(serverURL, "/") + "/api/v1/corpus/search?" + v.Encode()
}

// callServer sends a request without a body and decodes the JSON reply into out.
func callServer(method, target string, out interface{}) error {
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runKey() {
	fs := flag.NewFlagSet("key", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: examchat key <set|delete|status> [flags] [value]\n\n")
		fmt.Fprintf(fs.Output(), "set reads the key from the argument or, when absent, from stdin.\n\n")
		fs.PrintDefaults()
	}
	if len(os.Args) < 3 {
		fs.Usage()
		os.Exit(1)
	}
	action := os.Args[2]
	_ = fs.Parse(reorderArgs(os.Args[3:]))

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	keys := keyStore(cfg)
	ctx := context.Background()

	switch action {
	case "set":
		value := buildQuery(fs.Args())
		if value == "" {
			b, err := io.ReadAll(io.LimitReader(os.Stdin, 4096))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to read key: %v\n", err)
				os.Exit(1)
			}
			value = strings.TrimSpace(string(b))
		}
		if value == "" {
			fmt.Fprintln(os.Stderr, "No key given")
			os.Exit(1)
		}
		if err := keys.Put(ctx, secrets.APIKeyName, value); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to store key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("API key stored in %s\n", cfg.Secrets.Dir)
	case "delete":
		if err := keys.Delete(ctx, secrets.APIKeyName); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to delete key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("API key deleted")
	case "status":
		if _, err := secrets.Lookup(ctx, keys, secrets.APIKeyName); err != nil {
			cli.WriteError(os.Stdout, chat.ErrAuthMissing, chat.Guidance(chat.ErrAuthMissing))
			os.Exit(1)
		}
		fmt.Println("API key configured")
	default:
		fmt.Printf("Unknown key action: %s\n", action)
		fs.Usage()
		os.Exit(1)
	}
}

// mustLoad loads config and a logger for one-shot commands, exiting on failure.
// Logging stays quiet unless debug or a log file is configured.
func mustLoad(configPath string) (*config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Debug && cfg.LogFile == "" {
		return cfg, zap.NewNop()
	}
	logger, err := utils.NewLoggerWithFile(cfg.Debug, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

// Components holds initialized services.
type Components struct {
	Library  *corpus.Library
	Searcher *keyword.Searcher
	Chat     *chat.Service
	Keys     secrets.Store
	Storage  storage.Storage
}

func (c *Components) Close() {
	if c.Searcher != nil {
		_ = c.Searcher.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// manifestFromConfig converts configured documents into a corpus manifest.
func manifestFromConfig(entries []config.DocumentEntry) corpus.Manifest {
	m := make(corpus.Manifest, 0, len(entries))
	for _, e := range entries {
		m = append(m, corpus.Entry{Name: e.Name, Path: e.Path})
	}
	return corpus.NewManifest(m...)
}

// keyStore looks the API key up in the environment first, then in the secrets dir.
func keyStore(cfg *config.Config) *secrets.Chain {
	return secrets.NewChain(
		secrets.NewEnvStore(secrets.APIKeyName, cfg.Secrets.EnvVar),
		secrets.NewFileStore(cfg.Secrets.Dir),
	)
}

// initializeComponents wires the corpus, search, chat and (when archive is set)
// export storage from cfg.
func initializeComponents(cfg *config.Config, logger *zap.Logger, archive bool) (*Components, error) {
	loader := corpus.NewLoader(
		extract.NewExtractor(),
		corpus.WithMaxChars(cfg.Documents.MaxChars),
		corpus.WithLogger(logger),
	)
	library := corpus.NewLibrary(
		manifestFromConfig(cfg.Documents.Manifest),
		loader,
		corpus.NewCache(cfg.Documents.CacheSize),
	)
	client := llm.NewClient(
		llm.WithEndpoint(cfg.Chat.Endpoint),
		llm.WithTimeout(cfg.Chat.Timeout),
		llm.WithLogger(logger),
	)
	keys := keyStore(cfg)

	c := &Components{
		Library:  library,
		Searcher: keyword.NewSearcher(library, logger),
		Chat:     chat.NewService(library, client, keys, &cfg.Chat, logger),
		Keys:     keys,
	}
	if archive {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		c.Storage = store
	}
	return c, nil
}

func printUsage() {
	fmt.Println(`examchat - Chat with an exam, its answer key and its grades

Usage:
  examchat server [flags]             Start the HTTP server
  examchat ask [flags] [question]     Ask a question (no question starts an interactive chat)
  examchat summary [flags]            Summarize the whole exam
  examchat corpus [flags]             Show which documents loaded
  examchat search [flags] <query>     Find the pages that mention a query
  examchat key <set|delete|status>    Manage the stored API key
  examchat version                    Show version
  examchat help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/examchat/config.yaml)
  --debug            Enable debug logging

Ask / Summary Flags:
  --config string        Config file path
  --api-key string       API key for this call (overrides EXAMCHAT_API_KEY and the stored key)
  --model string         Model name (default from config)
  --temperature float    Sampling temperature in [0,1] (default from config)
  --max-tokens int       Reply length limit (default from config)
  --output string        Output format: text or json (default: text)

Corpus / Search Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL. Empty (the default) reads the documents directly.
  --output string    Output format: text or json (default: text)

Interactive chat commands:
  /summary   summarize the exam
  /clear     start over
  /export    save the conversation as markdown in the current directory
  /quit      leave

Examples:
  examchat server
  examchat key set sk-...
  examchat ask "Which questions had the lowest scores?"
  examchat ask
  examchat summary --output json
  examchat search --fuzzy photosintesis
  examchat corpus --server http://localhost:8080 --reload`)
}
