package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/virtualclone/ai/answering"
	"github.com/hrygo/virtualclone/ai/knowledge"
	"github.com/hrygo/virtualclone/ai/translate"
	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/store"
	"github.com/hrygo/virtualclone/store/db/memory"
)

type MockTranslator struct {
	mock.Mock
}

func (m *MockTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	args := m.Called(ctx, text, src, tgt)
	return args.String(0), args.Error(1)
}

type recorder struct {
	outcomes map[string][]bool
}

func (r *recorder) RecordTranslation(direction string, success bool) {
	if r.outcomes == nil {
		r.outcomes = make(map[string][]bool)
	}
	r.outcomes[direction] = append(r.outcomes[direction], success)
}

// echoQA answers every question with "answer to <question>".
type echoQA struct {
	questions []string
	contexts  []string
}

func (e *echoQA) Answer(_ context.Context, question, context string, _, _ int) ([]answering.Candidate, error) {
	e.questions = append(e.questions, question)
	e.contexts = append(e.contexts, context)
	return []answering.Candidate{{Text: "answer to " + question, Score: 1}}, nil
}

func newTestService(t *testing.T, qa answering.QuestionAnswerer, opts ...Option) *Service {
	t.Helper()
	prof := &profile.Profile{SessionHistoryLimit: 10}
	driver, err := memory.NewDB(prof)
	require.NoError(t, err)
	st := store.New(driver, prof)
	t.Cleanup(func() { _ = st.Close() })

	engine := answering.NewEngine(qa, answering.DefaultConfig())
	return NewService(engine, st, knowledge.StaticSource("The Matrix is a simulation."), opts...)
}

func TestService_Chat(t *testing.T) {
	qa := &echoQA{}
	svc := newTestService(t, qa)
	ctx := context.Background()

	reply, err := svc.Chat(ctx, Request{SessionID: "s", Message: "  What is the Matrix?  "})
	require.NoError(t, err)
	assert.Equal(t, "answer to What is the Matrix?", reply.Response)
	assert.Equal(t, "What is the Matrix?", reply.Message)
	assert.Equal(t, translate.English, reply.Language)
	assert.Equal(t, answering.ModeNovel, reply.Mode)
	assert.Equal(t, "The Matrix is a simulation.", qa.contexts[0])

	_, err = svc.Chat(ctx, Request{SessionID: "s", Message: "Who is Neo?"})
	require.NoError(t, err)
	assert.Contains(t, qa.contexts[1], "Previous Question: What is the Matrix?")

	history, err := svc.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Who is Neo?", history[1].Question)

	require.NoError(t, svc.Reset(ctx, "s"))
	history, err = svc.History(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_Chat_HistoryWindow(t *testing.T) {
	qa := &echoQA{}
	svc := newTestService(t, qa, WithHistoryWindow(1))
	ctx := context.Background()

	for _, q := range []string{"first question", "second question", "third question"} {
		_, err := svc.Chat(ctx, Request{SessionID: "s", Message: q})
		require.NoError(t, err)
	}
	last := qa.contexts[2]
	assert.Contains(t, last, "second question")
	assert.NotContains(t, last, "first question")
}

func TestService_Chat_EmptyMessage(t *testing.T) {
	svc := newTestService(t, &echoQA{})
	_, err := svc.Chat(context.Background(), Request{SessionID: "s", Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestService_Chat_Translated(t *testing.T) {
	qa := &echoQA{}
	tr := new(MockTranslator)
	tr.On("Translate", mock.Anything, "¿Qué es Matrix?", "spa_Latn", translate.English).Return("What is the Matrix?", nil)
	tr.On("Translate", mock.Anything, "answer to What is the Matrix?", translate.English, "spa_Latn").Return("respuesta", nil)
	rec := &recorder{}
	svc := newTestService(t, qa, WithTranslator(tr), WithTranslationRecorder(rec))

	reply, err := svc.Chat(context.Background(), Request{SessionID: "s", Message: "¿Qué es Matrix?", Language: "spa_Latn"})
	require.NoError(t, err)
	assert.Equal(t, "respuesta", reply.Response)
	assert.Equal(t, []string{"What is the Matrix?"}, qa.questions)
	assert.Equal(t, []bool{true}, rec.outcomes["inbound"])
	assert.Equal(t, []bool{true}, rec.outcomes["outbound"])

	history, err := svc.History(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "¿Qué es Matrix?", history[0].Question)
	assert.Equal(t, "respuesta", history[0].Answer)
}

func TestService_Chat_TranslationFailure(t *testing.T) {
	qa := &echoQA{}
	tr := new(MockTranslator)
	tr.On("Translate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("translator down"))
	rec := &recorder{}
	svc := newTestService(t, qa, WithTranslator(tr), WithTranslationRecorder(rec))

	reply, err := svc.Chat(context.Background(), Request{SessionID: "s", Message: "Bonjour", Language: "fra_Latn"})
	require.NoError(t, err)
	assert.Equal(t, "answer to Bonjour", reply.Response)
	assert.Equal(t, []bool{false}, rec.outcomes["inbound"])
}
