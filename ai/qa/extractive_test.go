package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/virtualclone/ai/answering"
	"github.com/hrygo/virtualclone/ai/core/llm"
)

type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Chat(ctx context.Context, messages []llm.Message) (string, *llm.CallStats, error) {
	args := m.Called(ctx, messages)
	return args.String(0), nil, args.Error(1)
}

func (m *MockLLM) Warmup(context.Context) {}

const matrixContext = "The Matrix is a simulated reality created by machines. Neo is the One."

func TestParseSpans(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    []answering.Candidate
		wantErr bool
	}{
		{
			name:  "array",
			reply: `[{"answer":"a simulated reality","score":0.9},{"answer":"machines","score":0.4}]`,
			want:  []answering.Candidate{{Text: "a simulated reality", Score: 0.9}, {Text: "machines", Score: 0.4}},
		},
		{
			name:  "single object",
			reply: `{"answer":"Neo","score":0.7}`,
			want:  []answering.Candidate{{Text: "Neo", Score: 0.7}},
		},
		{
			name:  "fenced",
			reply: "```json\n[{\"answer\":\"Neo\",\"score\":1}]\n```",
			want:  []answering.Candidate{{Text: "Neo", Score: 1}},
		},
		{
			name:  "empty array",
			reply: `[]`,
			want:  []answering.Candidate{},
		},
		{name: "prose", reply: "The answer is Neo.", wantErr: true},
		{name: "broken json", reply: `[{"answer":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpans(tt.reply)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter(t *testing.T) {
	candidates := []answering.Candidate{
		{Text: "machines", Score: 0.2},
		{Text: "invented text", Score: 0.99},
		{Text: "  A SIMULATED reality ", Score: 0.8},
		{Text: "", Score: 0.5},
		{Text: "Neo is the One", Score: 0.6},
	}

	got := Filter(candidates, matrixContext, 2, 150)
	assert.Equal(t, []answering.Candidate{
		{Text: "A SIMULATED reality", Score: 0.8},
		{Text: "Neo is the One", Score: 0.6},
	}, got)

	cut := Filter([]answering.Candidate{{Text: "simulated reality", Score: 1}}, matrixContext, 3, 9)
	require.Len(t, cut, 1)
	assert.Equal(t, "simulated", cut[0].Text)
}

func TestExtractive_Answer(t *testing.T) {
	m := new(MockLLM)
	m.On("Chat", mock.Anything, mock.MatchedBy(func(msgs []llm.Message) bool {
		return len(msgs) == 2 &&
			msgs[0].Role == "system" &&
			msgs[1].Role == "user" &&
			len(msgs[1].Content) > len(matrixContext)
	})).Return(`[{"answer":"a simulated reality","score":0.9},{"answer":"a dream","score":0.5}]`, nil)

	qa := NewExtractive(m)
	got, err := qa.Answer(context.Background(), "What is the Matrix?", matrixContext, 3, 150)
	require.NoError(t, err)
	assert.Equal(t, []answering.Candidate{{Text: "a simulated reality", Score: 0.9}}, got)
	m.AssertExpectations(t)
}

func TestExtractive_Answer_Errors(t *testing.T) {
	t.Run("llm failure", func(t *testing.T) {
		m := new(MockLLM)
		m.On("Chat", mock.Anything, mock.Anything).Return("", errors.New("timeout"))

		_, err := NewExtractive(m).Answer(context.Background(), "q", matrixContext, 3, 150)
		assert.ErrorContains(t, err, "timeout")
	})

	t.Run("malformed reply", func(t *testing.T) {
		m := new(MockLLM)
		m.On("Chat", mock.Anything, mock.Anything).Return("I cannot answer that.", nil)

		_, err := NewExtractive(m).Answer(context.Background(), "q", matrixContext, 3, 150)
		assert.ErrorIs(t, err, ErrMalformedOutput)
	})
}
