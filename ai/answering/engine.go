package answering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Defaults for Config.
const (
	DefaultCacheCapacity       = 100
	DefaultRecentExchanges     = 3
	DefaultRepetitionWindow    = 5
	DefaultSimilarityThreshold = 0.7
	DefaultPrimaryTopK         = 3
	DefaultDiverseTopK         = 5
	DefaultMaxAnswerLength     = 150
)

// Fallback answers returned instead of an error. The primary one is used for
// novel questions, the diverse one for repeated questions.
const (
	FallbackAnswer        = "I apologize, but I'm having trouble processing your question right now."
	DiverseFallbackAnswer = "I understand you're asking about this topic... let me provide a different perspective on this."
)

// Config tunes the engine. Zero values take the defaults above.
type Config struct {
	CacheCapacity       int
	RecentExchanges     int
	RepetitionWindow    int
	SimilarityThreshold float64
	PrimaryTopK         int
	DiverseTopK         int
	MaxAnswerLength     int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		CacheCapacity:       DefaultCacheCapacity,
		RecentExchanges:     DefaultRecentExchanges,
		RepetitionWindow:    DefaultRepetitionWindow,
		SimilarityThreshold: DefaultSimilarityThreshold,
		PrimaryTopK:         DefaultPrimaryTopK,
		DiverseTopK:         DefaultDiverseTopK,
		MaxAnswerLength:     DefaultMaxAnswerLength,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = d.CacheCapacity
	}
	if c.RecentExchanges <= 0 {
		c.RecentExchanges = d.RecentExchanges
	}
	if c.RepetitionWindow <= 0 {
		c.RepetitionWindow = d.RepetitionWindow
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.PrimaryTopK <= 0 {
		c.PrimaryTopK = d.PrimaryTopK
	}
	if c.DiverseTopK <= 0 {
		c.DiverseTopK = d.DiverseTopK
	}
	if c.MaxAnswerLength <= 0 {
		c.MaxAnswerLength = d.MaxAnswerLength
	}
	return c
}

// Engine answers questions within a conversation. It is constructed once per
// process and shared by every request; its only state is the answer cache.
type Engine struct {
	qa        QuestionAnswerer
	augmenter *ContextAugmenter
	detector  *RepetitionDetector
	cache     *AnswerCache
	selector  *DiversitySelector
	observer  Observer
	cfg       Config
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRand sets the random source used to break ties between candidates.
func WithRand(r Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.selector.rand = r
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
			e.selector.observer = o
		}
	}
}

// WithAnswerCache shares an existing answer cache.
func WithAnswerCache(c *AnswerCache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
			e.selector.cache = c
		}
	}
}

// NewEngine creates an engine answering through qa.
func NewEngine(qa QuestionAnswerer, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	answerCache := NewAnswerCache(cfg.CacheCapacity)
	e := &Engine{
		qa:        qa,
		augmenter: NewContextAugmenter(cfg.RecentExchanges),
		detector:  NewRepetitionDetector(cfg.RepetitionWindow, cfg.SimilarityThreshold),
		cache:     answerCache,
		selector:  NewDiversitySelector(answerCache, nil),
		observer:  nopObserver{},
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cache.onEvict(e.observer.ObserveCacheEviction)
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Cache returns the engine's answer cache.
func (e *Engine) Cache() *AnswerCache {
	return e.cache
}

// Answer returns the answer text for question. It never fails: problems with
// the question answerer degrade to a fixed fallback answer. history is not
// modified; appending the new turn is the caller's job.
func (e *Engine) Answer(ctx context.Context, question, baseContext string, history []Turn) string {
	return e.AnswerDetailed(ctx, question, baseContext, history).Text
}

// AnswerDetailed is Answer with the decision trail attached.
func (e *Engine) AnswerDetailed(ctx context.Context, question, baseContext string, history []Turn) (res Result) {
	start := time.Now()
	res.Mode = ModeNovel
	defer func() {
		if r := recover(); r != nil {
			slog.Error("answering: recovered from panic", "panic", r)
			res.Text, res.Source, res.Err = e.fallback(res.Mode), SourceFallback, fmt.Errorf("panic: %v", r)
		}
		res.Duration = time.Since(start)
		e.observer.ObserveAnswer(res.Mode, res.Source, res.Duration)
		e.observer.SetCacheSize(e.cache.Len())
	}()

	augmented := e.augmenter.Augment(baseContext, history)
	res.Fingerprint = Fingerprint(question)

	if e.detector.IsRepetitive(question, history) {
		res.Mode = ModeRepetitive
		res.Text, res.Source, res.Err = e.answerDiverse(ctx, question, augmented, res.Fingerprint)
	} else {
		res.Text, res.Source, res.Err = e.answerPrimary(ctx, question, augmented, res.Fingerprint)
	}

	if res.Err != nil {
		slog.Warn("answering: falling back",
			"mode", res.Mode,
			"fingerprint", res.Fingerprint,
			"error", res.Err,
		)
	} else {
		slog.Debug("answering: answered",
			"mode", res.Mode,
			"source", res.Source,
			"fingerprint", res.Fingerprint,
		)
	}
	return res
}

func (e *Engine) answerPrimary(ctx context.Context, question, augmented, fp string) (string, Source, error) {
	candidates, err := e.ask(ctx, question, augmented, e.cfg.PrimaryTopK)
	if err != nil {
		return FallbackAnswer, SourceFallback, err
	}
	answer, err := e.selector.SelectPrimary(candidates, fp)
	if err != nil {
		return FallbackAnswer, SourceFallback, err
	}
	return answer, SourceModel, nil
}

func (e *Engine) answerDiverse(ctx context.Context, question, augmented, fp string) (string, Source, error) {
	if answer, ok := e.selector.CachedAlternative(fp); ok {
		return answer, SourceCache, nil
	}

	candidates, err := e.ask(ctx, question, augmented, e.cfg.DiverseTopK)
	if err != nil {
		return DiverseFallbackAnswer, SourceFallback, err
	}
	answer, err := e.selector.SelectDiverse(candidates, fp)
	if err != nil {
		return DiverseFallbackAnswer, SourceFallback, err
	}
	return answer, SourceModel, nil
}

func (e *Engine) ask(ctx context.Context, question, augmented string, topK int) ([]Candidate, error) {
	if e.qa == nil {
		return nil, errors.New("no question answerer configured")
	}

	start := time.Now()
	candidates, err := e.qa.Answer(ctx, question, augmented, topK, e.cfg.MaxAnswerLength)
	if err == nil && len(candidates) == 0 {
		err = ErrNoCandidates
	}
	e.observer.ObserveQuestionAnswerer(err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("question answerer: %w", err)
	}
	return candidates, nil
}

func (e *Engine) fallback(mode Mode) string {
	if mode == ModeRepetitive {
		return DiverseFallbackAnswer
	}
	return FallbackAnswer
}
