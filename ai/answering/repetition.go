package answering

import "strings"

// RepetitionDetector decides whether a question is a near-duplicate of one
// asked within the recent history window.
type RepetitionDetector struct {
	window    int
	threshold float64
}

// NewRepetitionDetector creates a detector that looks back over window turns
// and flags similarities strictly above threshold.
func NewRepetitionDetector(window int, threshold float64) *RepetitionDetector {
	if window <= 0 {
		window = DefaultRepetitionWindow
	}
	return &RepetitionDetector{window: window, threshold: threshold}
}

// IsRepetitive reports whether question lexically matches a recent question.
func (d *RepetitionDetector) IsRepetitive(question string, history []Turn) bool {
	if len(history) == 0 {
		return false
	}

	q := strings.ToLower(question)
	for _, turn := range lastTurns(history, d.window) {
		if Similarity(q, strings.ToLower(turn.Question)) > d.threshold {
			return true
		}
	}
	return false
}

// lastTurns returns at most n trailing turns of history.
func lastTurns(history []Turn, n int) []Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
