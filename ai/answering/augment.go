package answering

import "strings"

const recentContextHeader = "Recent Conversation Context:"

// ContextAugmenter merges the base knowledge context with the last few
// exchanges so the question answerer can resolve follow-up questions.
type ContextAugmenter struct {
	recent int
}

// NewContextAugmenter creates an augmenter that keeps the last recent turns.
func NewContextAugmenter(recent int) *ContextAugmenter {
	if recent <= 0 {
		recent = DefaultRecentExchanges
	}
	return &ContextAugmenter{recent: recent}
}

// Augment returns base unchanged for an empty history, otherwise base followed
// by one "Previous Question"/"Previous Answer" block per recent turn.
func (a *ContextAugmenter) Augment(base string, history []Turn) string {
	if len(history) == 0 {
		return base
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n")
	sb.WriteString(recentContextHeader)
	sb.WriteString("\n")
	for i, turn := range lastTurns(history, a.recent) {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Previous Question: ")
		sb.WriteString(turn.Question)
		sb.WriteString("\nPrevious Answer: ")
		sb.WriteString(turn.Answer)
		sb.WriteString("\n")
	}
	return sb.String()
}
