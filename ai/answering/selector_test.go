package answering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand always returns the same index, clamped to n.
type fixedRand struct {
	idx   int
	calls int
	lastN int
}

func (r *fixedRand) IntN(n int) int {
	r.calls++
	r.lastN = n
	if r.idx >= n {
		return n - 1
	}
	return r.idx
}

func candidates(texts ...string) []Candidate {
	out := make([]Candidate, len(texts))
	for i, t := range texts {
		out[i] = Candidate{Text: t, Score: 1 - float64(i)*0.1}
	}
	return out
}

func TestDiversitySelector_SelectPrimary(t *testing.T) {
	t.Run("duplicates collapse before picking", func(t *testing.T) {
		rnd := &fixedRand{idx: 1}
		s := NewDiversitySelector(NewAnswerCache(10), rnd)

		got, err := s.SelectPrimary(candidates("A", "A", "B", "C"), "fp")
		require.NoError(t, err)
		assert.Equal(t, "B", got)
		assert.Equal(t, 2, rnd.lastN)
		assert.Equal(t, []string{"B"}, s.cache.Get("fp"))
	})

	t.Run("single unique candidate skips the random source", func(t *testing.T) {
		rnd := &fixedRand{}
		s := NewDiversitySelector(NewAnswerCache(10), rnd)

		got, err := s.SelectPrimary(candidates("42", "42"), "fp")
		require.NoError(t, err)
		assert.Equal(t, "42", got)
		assert.Zero(t, rnd.calls)
	})

	t.Run("no usable candidates", func(t *testing.T) {
		s := NewDiversitySelector(NewAnswerCache(10), &fixedRand{})

		_, err := s.SelectPrimary(candidates("", "  "), "fp")
		assert.ErrorIs(t, err, ErrNoCandidates)
		assert.False(t, s.cache.Contains("fp"))
	})
}

func TestDiversitySelector_CachedAlternative(t *testing.T) {
	t.Run("returns an earlier answer", func(t *testing.T) {
		c := NewAnswerCache(10)
		c.Append("fp", "A")
		c.Append("fp", "B")
		s := NewDiversitySelector(c, &fixedRand{idx: 0})

		got, ok := s.CachedAlternative("fp")
		require.True(t, ok)
		assert.Equal(t, "A", got)
		assert.Equal(t, []string{"A", "B"}, c.Get("fp"), "lookup must not write the cache")
	})

	t.Run("single stored answer is not enough", func(t *testing.T) {
		c := NewAnswerCache(10)
		c.Append("fp", "A")
		s := NewDiversitySelector(c, &fixedRand{})

		_, ok := s.CachedAlternative("fp")
		assert.False(t, ok)
	})

	t.Run("answers equal to the latest are excluded", func(t *testing.T) {
		c := NewAnswerCache(10)
		c.Append("fp", "42")
		c.Append("fp", "42")
		s := NewDiversitySelector(c, &fixedRand{})

		_, ok := s.CachedAlternative("fp")
		assert.False(t, ok)
	})

	t.Run("never returns the latest answer", func(t *testing.T) {
		c := NewAnswerCache(10)
		for _, a := range []string{"A", "C", "A", "C"} {
			c.Append("fp", a)
		}
		s := NewDiversitySelector(c, NewSeededRand(7))

		for i := 0; i < 20; i++ {
			got, ok := s.CachedAlternative("fp")
			require.True(t, ok)
			assert.Equal(t, "A", got)
		}
	})
}

func TestDiversitySelector_SelectDiverse(t *testing.T) {
	rnd := &fixedRand{idx: 5}
	c := NewAnswerCache(10)
	s := NewDiversitySelector(c, rnd)

	got, err := s.SelectDiverse(candidates("A", "B", "C", "D", "E"), "fp")
	require.NoError(t, err)
	assert.Equal(t, "C", got, "only the first three spans are eligible")
	assert.Equal(t, 3, rnd.lastN)

	got, err = s.SelectDiverse(candidates("A", "A"), "fp")
	require.NoError(t, err)
	assert.Equal(t, "A", got)
	assert.Equal(t, []string{"C", "A"}, c.Get("fp"))
}
