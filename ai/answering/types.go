// Package answering is the conversational answering engine: it augments the
// knowledge context with recent exchanges, detects near-repeat questions and
// prefers a different plausible answer when a question comes back.
package answering

import (
	"context"
	"errors"
	"time"
)

// Turn is one question/answer exchange of a conversation. The caller owns the
// history; the engine only reads a suffix of it.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Candidate is one extractive answer span proposed by a QuestionAnswerer.
type Candidate struct {
	Text  string
	Score float64
}

// QuestionAnswerer proposes answer spans drawn from the supplied context,
// ordered by descending confidence.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question, context string, topK, maxAnswerLength int) ([]Candidate, error)
}

// QuestionAnswererFunc adapts a function to QuestionAnswerer.
type QuestionAnswererFunc func(ctx context.Context, question, context string, topK, maxAnswerLength int) ([]Candidate, error)

// Answer calls f.
func (f QuestionAnswererFunc) Answer(ctx context.Context, question, context string, topK, maxAnswerLength int) ([]Candidate, error) {
	return f(ctx, question, context, topK, maxAnswerLength)
}

// ErrNoCandidates is returned when the question answerer produced nothing usable.
var ErrNoCandidates = errors.New("question answerer returned no candidates")

// Mode is the per-call state chosen by the repetition detector.
type Mode string

const (
	ModeNovel      Mode = "novel"
	ModeRepetitive Mode = "repetitive"
)

// Source tells where the returned answer came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Result is the detailed outcome of one Engine call.
type Result struct {
	Text        string
	Fingerprint string
	Mode        Mode
	Source      Source
	Err         error
	Duration    time.Duration
}

// Observer receives engine events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveAnswer(mode Mode, source Source, d time.Duration)
	ObserveQuestionAnswerer(err error, d time.Duration)
	ObserveCacheLookup(hit bool)
	ObserveCacheEviction()
	SetCacheSize(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveAnswer(Mode, Source, time.Duration)     {}
func (nopObserver) ObserveQuestionAnswerer(error, time.Duration) {}
func (nopObserver) ObserveCacheLookup(bool)                      {}
func (nopObserver) ObserveCacheEviction()                        {}
func (nopObserver) SetCacheSize(int)                             {}
