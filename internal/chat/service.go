package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/examchat/internal/config"
	"github.com/hyperjump/examchat/internal/corpus"
	"github.com/hyperjump/examchat/internal/llm"
	"github.com/hyperjump/examchat/internal/secrets"
)

// CorpusSource provides the current corpus.
type CorpusSource interface {
	Corpus() *corpus.Corpus
}

// Streamer opens a streaming chat-completion call.
type Streamer interface {
	Stream(ctx context.Context, req llm.Request) (*llm.Stream, error)
}

// Options overrides the configured defaults for one turn. Zero values fall back.
type Options struct {
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Result describes a completed turn.
type Result struct {
	Answer  string
	Model   string
	Elapsed time.Duration
}

// Service runs question and summary turns against sessions.
type Service struct {
	corpus CorpusSource
	client Streamer
	keys   secrets.Store
	config *config.ChatConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a chat service. keys may be nil when the key is always
// passed in Options.
func NewService(source CorpusSource, client Streamer, keys secrets.Store, cfg *config.ChatConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &config.ChatConfig{}
		config.ApplyChatDefaults(cfg)
	}
	return &Service{
		corpus: source,
		client: client,
		keys:   keys,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Ask runs one question turn. The question is recorded before the call; the
// reply is recorded only when the stream ends cleanly. Each fragment is passed to
// onFragment as it arrives.
func (s *Service) Ask(ctx context.Context, sess *Session, question string, opts Options, onFragment func(string)) (*Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	params, err := s.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: askSystemPrompt(s.corpus.Corpus().Prefix(s.config.ContextChars))},
		{Role: llm.RoleUser, Content: askUserPrompt(question)},
	}
	req := params.request(messages)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := sess.begin(); err != nil {
		return nil, err
	}
	defer sess.end()

	sess.startQuestion(question, s.now())
	return s.run(ctx, sess, req, "question", onFragment)
}

// Summarize asks for a structured summary of the whole exam. Only the reply is
// recorded and the turn counter is unchanged.
func (s *Service) Summarize(ctx context.Context, sess *Session, opts Options, onFragment func(string)) (*Result, error) {
	params, err := s.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	params.temperature = summaryTemperature
	params.maxTokens = summaryMaxTokens
	req := params.request([]llm.Message{
		{Role: llm.RoleSystem, Content: summarySystemPrompt(s.corpus.Corpus().Prefix(s.config.SummaryContextChars))},
		{Role: llm.RoleUser, Content: summaryRequest},
	})
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := sess.begin(); err != nil {
		return nil, err
	}
	defer sess.end()

	return s.run(ctx, sess, req, "summary", onFragment)
}

// Clear empties the transcript and resets the turn counter.
func (s *Service) Clear(sess *Session) error {
	return sess.clear()
}

// Models returns the models a turn may request.
func (s *Service) Models() []string {
	out := make([]string, len(s.config.Models))
	copy(out, s.config.Models)
	return out
}

func (s *Service) run(ctx context.Context, sess *Session, req llm.Request, kind string, onFragment func(string)) (*Result, error) {
	start := s.now()
	stream, err := s.client.Stream(ctx, req)
	if err != nil {
		s.logFailure(sess, kind, req.Model, err)
		return nil, err
	}
	answer, err := llm.Collect(stream, onFragment)
	if err != nil {
		s.logFailure(sess, kind, req.Model, err)
		return nil, err
	}
	sess.appendReply(answer, s.now())

	elapsed := s.now().Sub(start)
	s.logger.Info("turn completed",
		zap.String("session", sess.ID),
		zap.String("kind", kind),
		zap.String("model", req.Model),
		zap.Int("chars", len(answer)),
		zap.Int("dropped_lines", stream.Dropped()),
		zap.Duration("elapsed", elapsed),
	)
	return &Result{Answer: answer, Model: req.Model, Elapsed: elapsed}, nil
}

func (s *Service) logFailure(sess *Session, kind, model string, err error) {
	s.logger.Warn("turn failed",
		zap.String("session", sess.ID),
		zap.String("kind", kind),
		zap.String("model", model),
		zap.Error(err),
	)
}

type turnParams struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

func (p turnParams) request(messages []llm.Message) llm.Request {
	return llm.Request{
		Messages:    messages,
		APIKey:      p.apiKey,
		Model:       p.model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
}

func (s *Service) resolve(ctx context.Context, opts Options) (turnParams, error) {
	key, err := s.apiKey(ctx, opts.APIKey)
	if err != nil {
		return turnParams{}, err
	}
	p := turnParams{
		apiKey:      key,
		model:       strings.TrimSpace(opts.Model),
		temperature: s.config.TemperatureOrDefault(),
		maxTokens:   s.config.MaxTokens,
	}
	if p.model == "" {
		p.model = s.config.Model
	}
	if !s.allowed(p.model) {
		return turnParams{}, fmt.Errorf("%w: %q", ErrUnknownModel, p.model)
	}
	if opts.Temperature != nil {
		p.temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		p.maxTokens = opts.MaxTokens
	}
	return p, nil
}

// apiKey prefers the key given with the turn over the secret store.
func (s *Service) apiKey(ctx context.Context, direct string) (string, error) {
	if k := strings.TrimSpace(direct); k != "" {
		return k, nil
	}
	k, err := secrets.Lookup(ctx, s.keys, secrets.APIKeyName)
	if err == nil {
		return k, nil
	}
	if errors.Is(err, secrets.ErrNotFound) {
		return "", ErrAuthMissing
	}
	return "", fmt.Errorf("%w: %v", ErrAuthMissing, err)
}

func (s *Service) allowed(model string) bool {
	if len(s.config.Models) == 0 {
		return true
	}
	for _, m := range s.config.Models {
		if m == model {
			return true
		}
	}
	return false
}
