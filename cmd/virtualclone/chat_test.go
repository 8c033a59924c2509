package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/virtualclone/ai/answering"
	"github.com/hrygo/virtualclone/ai/conversation"
	"github.com/hrygo/virtualclone/ai/knowledge"
	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/store"
	"github.com/hrygo/virtualclone/store/db/memory"
)

func newTestConversation(t *testing.T) *conversation.Service {
	t.Helper()
	prof := &profile.Profile{SessionHistoryLimit: 10}
	driver, err := memory.NewDB(prof)
	require.NoError(t, err)
	st := store.New(driver, prof)
	t.Cleanup(func() { _ = st.Close() })

	qa := answering.QuestionAnswererFunc(func(_ context.Context, question, _ string, _, _ int) ([]answering.Candidate, error) {
		return []answering.Candidate{{Text: "answer to " + question}}, nil
	})
	engine := answering.NewEngine(qa, answering.DefaultConfig())
	return conversation.NewService(engine, st, knowledge.StaticSource("context"))
}

func TestRunChat(t *testing.T) {
	conv := newTestConversation(t)
	in := strings.NewReader("What is the Matrix?\n\nWho is Neo?\n/reset\nexit\nnever asked\n")
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), conv, "cli:test", "eng_Latn", in, &out))

	assert.Contains(t, out.String(), "answer to What is the Matrix?")
	assert.Contains(t, out.String(), "answer to Who is Neo?")
	assert.Contains(t, out.String(), "Conversation cleared.")
	assert.NotContains(t, out.String(), "never asked")

	turns, err := conv.History(context.Background(), "cli:test")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRunChat_EOF(t *testing.T) {
	conv := newTestConversation(t)
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), conv, "cli:eof", "eng_Latn", strings.NewReader("hello"), &out))

	turns, err := conv.History(context.Background(), "cli:eof")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello", turns[0].Question)
}

func TestSetupLogger(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	var buf bytes.Buffer
	setupLogger(&profile.Profile{Mode: "prod", LogLevel: "warn"}, &buf)
	slog.Info("hidden")
	slog.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)

	buf.Reset()
	setupLogger(&profile.Profile{Mode: "dev", LogLevel: "bogus"}, &buf)
	slog.Info("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")
}
