// Package qa adapts an OpenAI-compatible chat model into an extractive
// question answerer: the model proposes spans and only spans that occur in
// the supplied context are kept.
package qa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hrygo/virtualclone/ai/answering"
	"github.com/hrygo/virtualclone/ai/core/llm"
)

// ErrMalformedOutput is returned when the model reply is neither a JSON array
// of spans nor a single span object.
var ErrMalformedOutput = errors.New("malformed question answerer output")

const systemPrompt = `You are an extractive question answering system.
Answer ONLY with text copied verbatim from the context. Never invent text.
Return a JSON array of at most %d objects ordered by confidence, each shaped as
{"answer": "<span copied from the context>", "score": <confidence between 0 and 1>}.
Each answer must be at most %d characters. Return [] when the context holds no answer.
Output the JSON only.`

type span struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

// Extractive implements answering.QuestionAnswerer on top of an llm.Service.
type Extractive struct {
	llm llm.Service
}

var _ answering.QuestionAnswerer = (*Extractive)(nil)

// NewExtractive creates an extractive question answerer.
func NewExtractive(service llm.Service) *Extractive {
	return &Extractive{llm: service}
}

// Answer asks the model for up to topK spans of question within context.
func (e *Extractive) Answer(ctx context.Context, question, context string, topK, maxAnswerLength int) ([]answering.Candidate, error) {
	messages := []llm.Message{
		llm.SystemPrompt(fmt.Sprintf(systemPrompt, topK, maxAnswerLength)),
		llm.UserMessage("Context:\n" + context + "\n\nQuestion: " + question),
	}

	reply, _, err := e.llm.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	spans, err := ParseSpans(reply)
	if err != nil {
		slog.Debug("qa: unparseable reply", "reply", reply)
		return nil, err
	}
	return Filter(spans, context, topK, maxAnswerLength), nil
}

// ParseSpans decodes a model reply. Markdown code fences around the JSON are
// tolerated.
func ParseSpans(reply string) ([]answering.Candidate, error) {
	body := stripCodeFence(strings.TrimSpace(reply))

	var spans []span
	switch {
	case strings.HasPrefix(body, "["):
		if err := json.Unmarshal([]byte(body), &spans); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	case strings.HasPrefix(body, "{"):
		var single span
		if err := json.Unmarshal([]byte(body), &single); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		spans = []span{single}
	default:
		return nil, ErrMalformedOutput
	}

	out := make([]answering.Candidate, len(spans))
	for i, s := range spans {
		out[i] = answering.Candidate{Text: s.Answer, Score: s.Score}
	}
	return out, nil
}

// Filter keeps the spans that occur in context, cut to maxLen runes, sorted by
// descending score, at most topK of them.
func Filter(candidates []answering.Candidate, context string, topK, maxLen int) []answering.Candidate {
	lowerContext := strings.ToLower(context)
	out := make([]answering.Candidate, 0, len(candidates))
	for _, c := range candidates {
		text := strings.TrimSpace(c.Text)
		if text == "" || !strings.Contains(lowerContext, strings.ToLower(text)) {
			continue
		}
		if r := []rune(text); maxLen > 0 && len(r) > maxLen {
			text = strings.TrimSpace(string(r[:maxLen]))
		}
		out = append(out, answering.Candidate{Text: text, Score: c.Score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
