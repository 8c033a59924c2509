package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/virtualclone/ai"
	"github.com/hrygo/virtualclone/ai/answering"
	"github.com/hrygo/virtualclone/ai/conversation"
	"github.com/hrygo/virtualclone/ai/core/llm"
	"github.com/hrygo/virtualclone/ai/knowledge"
	"github.com/hrygo/virtualclone/ai/metrics"
	"github.com/hrygo/virtualclone/ai/qa"
	"github.com/hrygo/virtualclone/ai/translate"
	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/plugin/chat_apps/channels"
	"github.com/hrygo/virtualclone/plugin/chat_apps/channels/telegram"
	"github.com/hrygo/virtualclone/store"
	"github.com/hrygo/virtualclone/store/db"
)

// app is the wired answering stack shared by the server and the CLI commands.
type app struct {
	profile      *profile.Profile
	store        *store.Store
	source       *knowledge.FileSource
	metrics      *metrics.PrometheusExporter
	conversation *conversation.Service
	llm          llm.Service
}

func newApp(ctx context.Context, p *profile.Profile) (*app, error) {
	aiConfig := ai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid AI configuration")
	}

	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		printDatabaseError(err, p)
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	storeInstance := store.New(dbDriver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}

	a := &app{
		profile: p,
		store:   storeInstance,
		source:  knowledge.NewFileSource(p.ContextScriptPaths, p.ContextTranscripts),
		metrics: metrics.NewPrometheusExporter(metrics.Config{GoCollectors: p.MetricsGoCollectors}),
	}

	var (
		questionAnswerer answering.QuestionAnswerer
		convOpts         = []conversation.Option{
			conversation.WithHistoryWindow(p.ChatHistoryWindow),
			conversation.WithTranslationRecorder(a.metrics),
		}
	)
	if aiConfig.Enabled {
		a.llm, err = llm.NewService(aiConfig.LLM.ServiceConfig())
		if err != nil {
			_ = storeInstance.Close()
			return nil, errors.Wrap(err, "failed to initialize LLM service")
		}
		questionAnswerer = qa.NewExtractive(a.llm)

		translateLLM, err := llm.NewService(aiConfig.Translate.ServiceConfig())
		if err != nil {
			_ = storeInstance.Close()
			return nil, errors.Wrap(err, "failed to initialize translation service")
		}
		convOpts = append(convOpts, conversation.WithTranslator(translate.NewLLMTranslator(translateLLM)))

		slog.Info("LLM service initialized",
			"provider", aiConfig.LLM.Provider,
			"model", aiConfig.LLM.Model,
			"translate_model", aiConfig.Translate.Model,
		)
	} else {
		slog.Warn("AI features disabled, every question gets the fallback answer",
			"hint", "set VIRTUALCLONE_LLM_API_KEY or VIRTUALCLONE_LLM_PROVIDER=ollama",
		)
	}

	engine := answering.NewEngine(questionAnswerer, aiConfig.Answering, answering.WithObserver(a.metrics))
	a.conversation = conversation.NewService(engine, storeInstance, a.source, convOpts...)

	if ctxLen := len(a.source.Reload()); ctxLen == 0 {
		slog.Warn("base context is empty", "script_paths", p.ContextScriptPaths, "transcripts", p.ContextTranscripts)
	} else {
		slog.Info("base context loaded", "bytes", ctxLen)
	}
	return a, nil
}

// warmup primes the LLM connection in the background.
func (a *app) warmup() {
	if a.llm == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.llm.Warmup(ctx)
	}()
}

// watchContext reloads the base context on file changes until ctx is done.
func (a *app) watchContext(ctx context.Context) {
	if !a.profile.ContextWatchEnabled {
		return
	}
	if err := a.source.Watch(ctx); err != nil {
		slog.Warn("context watcher disabled", "error", err)
	}
}

// chatChannels registers the configured chat apps.
func (a *app) chatChannels(ctx context.Context) *channels.ChannelRouter {
	router := channels.NewChannelRouter()
	if a.profile.TelegramBotToken == "" {
		return router
	}

	ch, err := telegram.NewTelegramChannel(&telegram.TelegramConfig{
		BotToken:    a.profile.TelegramBotToken,
		SecretToken: a.profile.TelegramSecretToken,
	})
	if err != nil {
		slog.Warn("failed to create telegram channel", "error", err)
		return router
	}
	router.Register(ch)

	if a.profile.TelegramWebhookURL != "" {
		if err := ch.SetWebhook(ctx, a.profile.TelegramWebhookURL, false); err != nil {
			slog.Warn("failed to register telegram webhook", "error", err)
		}
	}
	return router
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
}
