package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileSource_Context(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	script := filepath.Join(dir, "llm-script.txt")
	transcripts := filepath.Join(dir, "train.jsonl")

	writeFile(t, empty, "   \n")
	writeFile(t, script, "I am the clone.")
	writeFile(t, transcripts, `{"text": " first talk "}
not json
{"other": "field"}
{"text": ""}

{"text": "second talk"}
`)

	src := NewFileSource([]string{filepath.Join(dir, "missing.txt"), empty, script}, transcripts)
	got, err := src.Context(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I am the clone.\n\n"+TranscriptsHeader+"\n\nfirst talk\n\nsecond talk", got)
}

func TestFileSource_NoFiles(t *testing.T) {
	dir := t.TempDir()
	src := NewFileSource([]string{filepath.Join(dir, "nope.txt")}, filepath.Join(dir, "nope.jsonl"))

	got, err := src.Context(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileSource_CachedUntilReload(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "llm-script.txt")
	writeFile(t, script, "v1")

	src := NewFileSource([]string{script}, "")
	got, _ := src.Context(context.Background())
	assert.Equal(t, "v1", got)

	writeFile(t, script, "v2")
	got, _ = src.Context(context.Background())
	assert.Equal(t, "v1", got)

	assert.Equal(t, "v2", src.Reload())
	got, _ = src.Context(context.Background())
	assert.Equal(t, "v2", got)
}

func TestFileSource_Watch(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "llm-script.txt")
	writeFile(t, script, "before")

	src := NewFileSource([]string{script}, "")
	_, _ = src.Context(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, src.Watch(ctx))

	writeFile(t, script, "after")
	assert.Eventually(t, func() bool {
		got, _ := src.Context(context.Background())
		return got == "after"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestReadTranscripts_Missing(t *testing.T) {
	_, err := ReadTranscripts(filepath.Join(t.TempDir(), "none.jsonl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStaticSource(t *testing.T) {
	got, err := StaticSource("fixed").Context(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fixed", got)
}
