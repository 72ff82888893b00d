package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/examchat/internal/chat"
	"github.com/hyperjump/examchat/internal/cli"
	"github.com/hyperjump/examchat/internal/models"
)

// turnFlags are the flags shared by ask and summary.
type turnFlags struct {
	configPath  *string
	apiKey      *string
	model       *string
	temperature *float64
	maxTokens   *int
	output      *string
}

func newTurnFlags(fs *flag.FlagSet) *turnFlags {
	return &turnFlags{
		configPath:  fs.String("config", defaultConfigPath, "config file path"),
		apiKey:      fs.String("api-key", "", "API key for this call (overrides the stored key)"),
		model:       fs.String("model", "", "model name (default from config)"),
		temperature: fs.Float64("temperature", -1, "sampling temperature in [0,1] (default from config)"),
		maxTokens:   fs.Int("max-tokens", 0, "reply length limit (default from config)"),
		output:      fs.String("output", "text", "output format: text or json"),
	}
}

// options converts the flags into per-turn overrides. A negative temperature
// means the flag was not given.
func (f *turnFlags) options() chat.Options {
	opts := chat.Options{
		APIKey:    *f.apiKey,
		Model:     *f.model,
		MaxTokens: *f.maxTokens,
	}
	if *f.temperature >= 0 {
		t := *f.temperature
		opts.Temperature = &t
	}
	return opts
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	flags := newTurnFlags(fs)
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	format, err := cli.ParseFormat(*flags.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := mustLoad(*flags.configPath)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess := chat.NewSession(time.Now())
	question := buildQuery(fs.Args())
	if question == "" {
		repl := &chatLoop{
			service:   components.Chat,
			session:   sess,
			opts:      flags.options(),
			out:       os.Stdout,
			errOut:    os.Stderr,
			exportDir: ".",
		}
		repl.run(ctx, os.Stdin)
		return
	}
	ok := runTurn(os.Stdout, os.Stderr, sess, format, func(onFragment func(string)) (*chat.Result, error) {
		return components.Chat.Ask(ctx, sess, question, flags.options(), onFragment)
	})
	if !ok {
		os.Exit(1)
	}
}

func runSummary() {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	flags := newTurnFlags(fs)
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*flags.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := mustLoad(*flags.configPath)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess := chat.NewSession(time.Now())
	ok := runTurn(os.Stdout, os.Stderr, sess, format, func(onFragment func(string)) (*chat.Result, error) {
		return components.Chat.Summarize(ctx, sess, flags.options(), onFragment)
	})
	if !ok {
		os.Exit(1)
	}
}

// runTurn runs one turn. Text output streams fragments as they arrive; JSON
// output is written once the turn ends. It reports whether the turn succeeded.
func runTurn(out, errOut io.Writer, sess *chat.Session, format cli.OutputFormat, turn func(func(string)) (*chat.Result, error)) bool {
	var onFragment func(string)
	streamed := false
	if format == cli.OutputText {
		onFragment = func(f string) {
			streamed = true
			fmt.Fprint(out, f)
		}
	}
	res, err := turn(onFragment)
	if err != nil {
		if streamed {
			fmt.Fprintln(out)
		}
		cli.WriteError(errOut, err, chat.Guidance(err))
		return false
	}
	resp := &models.AskResponse{
		SessionID: sess.ID,
		Answer:    res.Answer,
		Model:     res.Model,
		Turns:     sess.Turns(),
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if format == cli.OutputJSON {
		_ = cli.WriteAnswer(out, resp, format)
		return true
	}
	fmt.Fprintln(out)
	cli.WriteAnswerFooter(out, resp.Model, resp.ElapsedMS)
	return true
}

// chatLoop is the interactive chat: each line is a question or a slash command.
type chatLoop struct {
	service   *chat.Service
	session   *chat.Session
	opts      chat.Options
	out       io.Writer
	errOut    io.Writer
	exportDir string
}

func (l *chatLoop) run(ctx context.Context, in io.Reader) {
	fmt.Fprintln(l.out, "Ask about the exam. Commands: /summary /clear /export /quit")
	fmt.Fprintln(l.out, "Try:")
	for _, s := range chat.Suggestions() {
		fmt.Fprintf(l.out, "  - %s\n", s)
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(l.out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(l.out)
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !l.handle(ctx, scanner.Text()) {
			return
		}
	}
}

// handle processes one input line. It returns false when the loop should end.
func (l *chatLoop) handle(ctx context.Context, line string) bool {
	cmd, ok := parseCommand(line)
	if !ok {
		question := strings.TrimSpace(line)
		if question == "" {
			return true
		}
		runTurn(l.out, l.errOut, l.session, cli.OutputText, func(onFragment func(string)) (*chat.Result, error) {
			return l.service.Ask(ctx, l.session, question, l.opts, onFragment)
		})
		return true
	}
	switch cmd {
	case "quit", "exit":
		return false
	case "summary":
		runTurn(l.out, l.errOut, l.session, cli.OutputText, func(onFragment func(string)) (*chat.Result, error) {
			return l.service.Summarize(ctx, l.session, l.opts, onFragment)
		})
	case "clear":
		if err := l.service.Clear(l.session); err != nil {
			cli.WriteError(l.errOut, err, chat.Guidance(err))
			return true
		}
		fmt.Fprintln(l.out, "Conversation cleared.")
	case "export":
		path, err := exportTranscript(l.session, l.exportDir, time.Now())
		if err != nil {
			cli.WriteError(l.errOut, err, chat.Guidance(err))
			return true
		}
		fmt.Fprintf(l.out, "Saved %s\n", path)
	default:
		fmt.Fprintf(l.errOut, "Unknown command /%s\n", cmd)
	}
	return true
}

// parseCommand recognizes "/name" lines and returns the lower-cased name.
func parseCommand(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || len(line) == 1 {
		return "", false
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToLower(fields[0]), true
}

// exportTranscript writes the session's markdown export into dir.
func exportTranscript(sess *chat.Session, dir string, now time.Time) (string, error) {
	exp, err := chat.Export(sess, now)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, exp.Filename)
	if err := os.WriteFile(path, []byte(exp.Content), 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
