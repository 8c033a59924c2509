package answering

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("What is the Matrix?"), Fingerprint("  what is the matrix?\n"))
	assert.NotEqual(t, Fingerprint("What is the Matrix?"), Fingerprint("Who is Neo?"))
	assert.NotEmpty(t, Fingerprint(""))
}

func TestAnswerCache_AppendAndGet(t *testing.T) {
	c := NewAnswerCache(10)

	assert.Nil(t, c.Get("missing"))

	c.Append("fp", "A")
	c.Append("fp", "B")
	assert.Equal(t, []string{"A", "B"}, c.Get("fp"))

	got := c.Get("fp")
	got[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, c.Get("fp"), "Get must return a copy")
}

func TestAnswerCache_Capacity(t *testing.T) {
	t.Run("first fingerprint is evicted", func(t *testing.T) {
		c := NewAnswerCache(100)
		for i := 0; i < 101; i++ {
			c.Append(fmt.Sprintf("fp-%d", i), "answer")
		}
		assert.Equal(t, 100, c.Len())
		assert.False(t, c.Contains("fp-0"))
		assert.True(t, c.Contains("fp-1"))
		assert.True(t, c.Contains("fp-100"))
	})

	t.Run("re-accessed first fingerprint survives", func(t *testing.T) {
		c := NewAnswerCache(100)
		c.Append("fp-0", "answer")
		c.Append("fp-1", "answer")
		require.NotNil(t, c.Get("fp-0"))
		for i := 2; i < 101; i++ {
			c.Append(fmt.Sprintf("fp-%d", i), "answer")
		}
		assert.Equal(t, 100, c.Len())
		assert.True(t, c.Contains("fp-0"))
		assert.False(t, c.Contains("fp-1"))
	})

	t.Run("default capacity", func(t *testing.T) {
		assert.Equal(t, DefaultCacheCapacity, NewAnswerCache(0).Capacity())
	})
}

func TestAnswerCache_ConcurrentAppend(t *testing.T) {
	c := NewAnswerCache(8)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Append("shared", fmt.Sprintf("a%d", n))
			c.Append(fmt.Sprintf("fp-%d", n%20), "x")
			c.Get("shared")
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 8)
}
