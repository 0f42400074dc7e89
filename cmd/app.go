package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/parleychat/parley/internal/api"
	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/corpus"
	"github.com/parleychat/parley/internal/history"
	"github.com/parleychat/parley/internal/log"
	"github.com/parleychat/parley/internal/observability"
	"github.com/parleychat/parley/internal/transcript"
	"github.com/parleychat/parley/internal/upload"
)

// app bundles the wired client components so every command shares one
// construction path.
type app struct {
	cfg     *config.Config
	logger  log.Logger
	client  *api.Client
	staging *upload.Manager
	corpora *corpus.Manager
	history *history.Cache
	engine  *chat.Engine

	shutdownTracing func(context.Context) error
}

// newApp loads configuration and wires the full client stack.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}

	if cfg.Telemetry.Enabled() {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Telemetry.Endpoint,
			Environment: cfg.Telemetry.Environment,
			ServiceName: cfg.Telemetry.ServiceName,
			APIKey:      cfg.Telemetry.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.shutdownTracing = shutdown
	}

	retry := api.DefaultRetryConfig()
	retry.MaxRetries = cfg.RetryAttempts
	retry.InitialInterval = cfg.RetryBackoff()

	a.client, err = api.New(cfg.ServerURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Timeout()),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithRetry(retry),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	a.staging, err = upload.NewManager(upload.Config{
		Service:   a.client,
		MaxImages: cfg.MaxUploadImages,
		MaxFiles:  cfg.MaxUploadFiles,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating upload staging: %w", err)
	}

	a.corpora, err = corpus.NewManager(corpus.Config{
		Service: a.client,
		Confirm: askConfirm,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating corpus manager: %w", err)
	}

	a.history, err = history.NewCache(history.Config{
		Service:  a.client,
		BaseURL:  a.client.BaseURL(),
		Debounce: cfg.HistoryDebounce(),
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating history cache: %w", err)
	}

	a.engine, err = chat.NewEngine(chat.Config{
		Client:        a.client,
		Staging:       a.staging,
		Corpora:       a.corpora,
		ContextLength: cfg.ContextLength,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat engine: %w", err)
	}

	a.restoreActiveCorpora()

	return a, nil
}

// restoreActiveCorpora re-activates the corpora recorded in the local state
// file, so an activation made in one invocation shapes retrieval in the next.
// State problems only log a warning; queries still work without corpora.
func (a *app) restoreActiveCorpora() {
	names, err := corpus.LoadActiveNames()
	if err != nil {
		a.logger.Warn("loading active corpora state", "error", err)
		return
	}
	for _, name := range names {
		a.corpora.Activate(name)
	}
}

// saveActiveCorpora persists the current activation set for later
// invocations. Failures are logged, not fatal: the in-memory set still
// governs this session.
func (a *app) saveActiveCorpora() {
	if err := corpus.SaveActiveNames(a.corpora.ActiveNames()); err != nil {
		a.logger.Warn("saving active corpora state", "error", err)
	}
}

// Close flushes telemetry and stops background work.
func (a *app) Close() {
	a.history.Close()
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(context.Background()); err != nil {
			a.logger.Warn("tracing shutdown error", "error", err)
		}
	}
}

// resumeConversation adopts the conversation recorded in the local state
// file, so separate invocations continue the same conversation. A stale
// or missing record starts fresh.
func (a *app) resumeConversation(ctx context.Context) error {
	id, err := transcript.LoadCurrentConversationID()
	if err != nil {
		return fmt.Errorf("loading conversation state: %w", err)
	}
	if id == "" {
		return nil
	}

	conv, err := a.history.Load(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			a.logger.Debug("stored conversation no longer exists", "conversation_id", id)
			if clearErr := transcript.ClearCurrentConversationID(); clearErr != nil {
				a.logger.Warn("clearing conversation state", "error", clearErr)
			}
			return nil
		}
		return fmt.Errorf("loading conversation %s: %w", id, err)
	}

	if err := a.engine.Adopt(conv); err != nil {
		return fmt.Errorf("resuming conversation: %w", err)
	}
	return nil
}

// askConfirm prompts on stderr and reads a y/n answer from stdin.
// Anything other than y or yes declines; EOF declines.
func askConfirm(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
