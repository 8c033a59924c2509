// Package conversation runs one chat exchange end to end: it loads the
// session history and base context, translates when needed, asks the
// answering engine and records the new turn.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/virtualclone/ai/answering"
	"github.com/hrygo/virtualclone/ai/knowledge"
	"github.com/hrygo/virtualclone/ai/translate"
	"github.com/hrygo/virtualclone/store"
)

// ErrEmptyMessage is returned for blank chat messages.
var ErrEmptyMessage = errors.New("message is required")

// TranslationRecorder receives translation outcomes.
type TranslationRecorder interface {
	RecordTranslation(direction string, success bool)
}

// Request is one incoming chat message.
type Request struct {
	SessionID string
	Message   string
	// Language is an NLLB tag; empty means English.
	Language string
}

// Reply is the answer to a Request.
type Reply struct {
	Response  string
	Message   string
	Language  string
	Mode      answering.Mode
	Source    answering.Source
	Timestamp time.Time
}

// Service answers chat messages within stored sessions.
type Service struct {
	engine        *answering.Engine
	store         *store.Store
	source        knowledge.Source
	translator    translate.Translator
	recorder      TranslationRecorder
	historyWindow int
}

// Option customizes a Service.
type Option func(*Service)

// WithTranslator enables non-English conversations.
func WithTranslator(t translate.Translator) Option {
	return func(s *Service) { s.translator = t }
}

// WithTranslationRecorder reports translation outcomes.
func WithTranslationRecorder(r TranslationRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithHistoryWindow sets how many stored turns are handed to the engine.
func WithHistoryWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// NewService creates a conversation service.
func NewService(engine *answering.Engine, st *store.Store, source knowledge.Source, opts ...Option) *Service {
	s := &Service{
		engine:        engine,
		store:         st,
		source:        source,
		historyWindow: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat answers req.Message and appends the exchange to the session.
func (s *Service) Chat(ctx context.Context, req Request) (*Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	language := req.Language
	if language == "" {
		language = translate.English
	}

	stored, err := s.store.ListTurns(ctx, req.SessionID, s.historyWindow)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	history := make([]answering.Turn, len(stored))
	for i, t := range stored {
		history[i] = answering.Turn{Question: t.Question, Answer: t.Answer}
	}

	baseContext, err := s.source.Context(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load context")
	}

	var res answering.Result
	if language == translate.English || s.translator == nil {
		res = s.engine.AnswerDetailed(ctx, message, baseContext, history)
	} else {
		res = s.answerTranslated(ctx, message, language, baseContext, history)
	}

	// The session stores the message as the user wrote it.
	if err := s.store.AppendTurn(ctx, req.SessionID, message, res.Text); err != nil {
		return nil, errors.Wrap(err, "save turn")
	}

	return &Reply{
		Response:  res.Text,
		Message:   message,
		Language:  language,
		Mode:      res.Mode,
		Source:    res.Source,
		Timestamp: time.Now(),
	}, nil
}

// answerTranslated answers in English and translates back. If either
// translation fails, the untranslated message is answered instead.
func (s *Service) answerTranslated(ctx context.Context, message, language, baseContext string, history []answering.Turn) answering.Result {
	englishQuestion, err := s.translator.Translate(ctx, message, language, translate.English)
	s.record("inbound", err)
	if err != nil {
		slog.Error("conversation: translation error, answering untranslated", "language", language, "error", err)
		return s.engine.AnswerDetailed(ctx, message, baseContext, history)
	}

	res := s.engine.AnswerDetailed(ctx, englishQuestion, baseContext, history)

	translated, err := s.translator.Translate(ctx, res.Text, translate.English, language)
	s.record("outbound", err)
	if err != nil {
		slog.Error("conversation: translation error, answering untranslated", "language", language, "error", err)
		return s.engine.AnswerDetailed(ctx, message, baseContext, history)
	}
	res.Text = translated
	return res
}

func (s *Service) record(direction string, err error) {
	if s.recorder != nil {
		s.recorder.RecordTranslation(direction, err == nil)
	}
}

// History returns the whole stored history of a session.
func (s *Service) History(ctx context.Context, sessionID string) ([]*store.ConversationTurn, error) {
	return s.store.ListTurns(ctx, sessionID, 0)
}

// Reset forgets a session.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	return s.store.ResetSession(ctx, sessionID)
}
