package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCurrentVersion(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "1.4.0"

	assert.Equal(t, "1.4.0", GetCurrentVersion("prod"))
	assert.Equal(t, "1.4.0-dev", GetCurrentVersion("dev"))
	assert.Equal(t, "1.4.0-demo", GetCurrentVersion("demo"))
}

func TestIsRelease(t *testing.T) {
	assert.True(t, IsRelease("1.4.0"))
	assert.True(t, IsRelease("v2.0.1"))
	assert.False(t, IsRelease("1.4.0-dev"))
	assert.False(t, IsRelease("0.0.0-dev"))
	assert.False(t, IsRelease("garbage"))
}

func TestString(t *testing.T) {
	oldV, oldC := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldV, oldC })

	Version, GitCommit = "1.4.0", "unknown"
	assert.Equal(t, "1.4.0", String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, "1.4.0-01234567", String())
}
