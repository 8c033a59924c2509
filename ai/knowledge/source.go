// Package knowledge loads the base context the answering engine reads from:
// a persona script plus the transcripts produced by content ingestion.
package knowledge

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// TranscriptsHeader precedes the transcripts block in the loaded context.
const TranscriptsHeader = "=== Uploaded Content Transcripts ==="

// Source supplies the base context for a question.
type Source interface {
	Context(ctx context.Context) (string, error)
}

// StaticSource is a fixed context.
type StaticSource string

// Context returns s.
func (s StaticSource) Context(context.Context) (string, error) {
	return string(s), nil
}

// FileSource reads the script from the first candidate path holding a
// non-empty file, and transcripts from a JSONL file of {"text": ...} lines.
// The loaded context is cached until Reload.
type FileSource struct {
	scriptPaths     []string
	transcriptsPath string

	mu     sync.RWMutex
	loaded bool
	text   string
}

// NewFileSource creates a file source. transcriptsPath may be empty.
func NewFileSource(scriptPaths []string, transcriptsPath string) *FileSource {
	return &FileSource{scriptPaths: scriptPaths, transcriptsPath: transcriptsPath}
}

// Context returns the cached context, loading it on first use.
func (s *FileSource) Context(context.Context) (string, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.text, nil
	}
	s.mu.RUnlock()
	return s.Reload(), nil
}

// Reload re-reads the files and replaces the cached context.
func (s *FileSource) Reload() string {
	var parts []string
	if script := s.loadScript(); script != "" {
		parts = append(parts, script)
	} else {
		slog.Warn("knowledge: base script not found", "candidates", s.scriptPaths)
	}
	if transcripts := s.loadTranscripts(); transcripts != "" {
		parts = append(parts, transcripts)
	}
	text := strings.Join(parts, "\n\n")

	s.mu.Lock()
	s.text, s.loaded = text, true
	s.mu.Unlock()
	return text
}

func (s *FileSource) loadScript() string {
	for _, p := range s.scriptPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("knowledge: failed to read script", "path", abs, "error", err)
			}
			continue
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		slog.Info("knowledge: base script loaded", "path", abs, "chars", len(data))
		return string(data)
	}
	return ""
}

func (s *FileSource) loadTranscripts() string {
	if s.transcriptsPath == "" {
		return ""
	}
	texts, err := ReadTranscripts(s.transcriptsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("knowledge: failed to load transcripts", "path", s.transcriptsPath, "error", err)
		}
		return ""
	}
	if len(texts) == 0 {
		return ""
	}
	slog.Info("knowledge: transcripts loaded", "path", s.transcriptsPath, "count", len(texts))
	return TranscriptsHeader + "\n\n" + strings.Join(texts, "\n\n")
}

// ReadTranscripts returns the trimmed non-empty "text" field of every line of
// a JSONL file. Malformed lines are skipped.
func ReadTranscripts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open transcripts %s", path)
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var record struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			slog.Warn("knowledge: skipping malformed transcript line", "path", path, "line", line)
			continue
		}
		if text := strings.TrimSpace(record.Text); text != "" {
			texts = append(texts, text)
		}
	}
	if err := scanner.Err(); err != nil {
		return texts, errors.Wrapf(err, "read transcripts %s", path)
	}
	return texts, nil
}

// Watch reloads the context whenever one of the source files changes, until
// ctx is done. Directories are watched so that atomic replaces are seen.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}

	tracked := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, p := range append(append([]string{}, s.scriptPaths...), s.transcriptsPath) {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		tracked[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			slog.Warn("knowledge: cannot watch directory", "dir", dir, "error", err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if _, ok := tracked[filepath.Clean(event.Name)]; !ok {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				slog.Debug("knowledge: source changed", "path", event.Name, "op", event.Op.String())
				s.Reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("knowledge: watcher error", "error", err)
			}
		}
	}()
	return nil
}
