// Package translate converts text between NLLB language tags through an
// OpenAI-compatible chat model.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/virtualclone/ai/core/llm"
)

// ErrUnsupportedLanguage is returned for language tags outside Languages().
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Translator translates text from one language tag to another.
type Translator interface {
	Translate(ctx context.Context, text, src, tgt string) (string, error)
}

// LLMTranslator implements Translator with an llm.Service.
type LLMTranslator struct {
	llm llm.Service
}

// NewLLMTranslator creates a translator backed by service.
func NewLLMTranslator(service llm.Service) *LLMTranslator {
	return &LLMTranslator{llm: service}
}

// Translate returns text unchanged when src equals tgt or text is blank.
func (t *LLMTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	if src == tgt || strings.TrimSpace(text) == "" {
		return text, nil
	}
	if !IsSupported(src) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, src)
	}
	if !IsSupported(tgt) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, tgt)
	}

	prompt := fmt.Sprintf(
		"Translate the user's text from %s to %s. Reply with the translation only, without quotes or notes.",
		Name(src), Name(tgt),
	)
	out, _, err := t.llm.Chat(ctx, []llm.Message{llm.SystemPrompt(prompt), llm.UserMessage(text)})
	if err != nil {
		return "", fmt.Errorf("translate %s->%s: %w", src, tgt, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("translate %s->%s: empty translation", src, tgt)
	}
	return out, nil
}
