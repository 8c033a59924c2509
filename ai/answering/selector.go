package answering

import "strings"

const (
	// primaryPickPool is how many unique leading candidates the primary path
	// chooses between.
	primaryPickPool = 2
	// diversePickPool is how many leading candidates the diverse path
	// chooses between.
	diversePickPool = 3
)

// DiversitySelector picks the answer to return among the candidates and
// records it in the answer cache.
type DiversitySelector struct {
	cache    *AnswerCache
	rand     Rand
	observer Observer
}

// NewDiversitySelector creates a selector backed by cache. A nil rnd uses the
// process-wide random source.
func NewDiversitySelector(cache *AnswerCache, rnd Rand) *DiversitySelector {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &DiversitySelector{cache: cache, rand: rnd, observer: nopObserver{}}
}

// SelectPrimary handles a question that is not a repeat: duplicates are
// dropped, and one of the first two distinct spans is chosen.
func (s *DiversitySelector) SelectPrimary(candidates []Candidate, fp string) (string, error) {
	unique := uniqueTexts(candidates)
	if len(unique) == 0 {
		return "", ErrNoCandidates
	}

	answer := unique[0]
	if len(unique) > 1 {
		answer = s.pick(unique[:min(primaryPickPool, len(unique))])
	}
	s.cache.Append(fp, answer)
	return answer, nil
}

// CachedAlternative returns a previously given answer for fp other than the
// most recent one, when the cache holds more than one answer and at least
// one of them differs from the latest. The cache is not written.
func (s *DiversitySelector) CachedAlternative(fp string) (string, bool) {
	stored := s.cache.Get(fp)
	s.observer.ObserveCacheLookup(len(stored) > 0)
	if len(stored) <= 1 {
		return "", false
	}

	latest := stored[len(stored)-1]
	alternatives := make([]string, 0, len(stored)-1)
	for _, answer := range stored[:len(stored)-1] {
		if answer != latest {
			alternatives = append(alternatives, answer)
		}
	}
	if len(alternatives) == 0 {
		return "", false
	}
	return s.pick(alternatives), true
}

// SelectDiverse handles a repeated question whose cache had no usable
// alternative: one of the first three spans is chosen as given.
func (s *DiversitySelector) SelectDiverse(candidates []Candidate, fp string) (string, error) {
	texts := nonEmptyTexts(candidates)
	if len(texts) == 0 {
		return "", ErrNoCandidates
	}

	answer := s.pick(texts[:min(diversePickPool, len(texts))])
	s.cache.Append(fp, answer)
	return answer, nil
}

func (s *DiversitySelector) pick(options []string) string {
	if len(options) == 1 {
		return options[0]
	}
	return options[s.rand.IntN(len(options))]
}

// nonEmptyTexts keeps candidate order and drops blank spans.
func nonEmptyTexts(candidates []Candidate) []string {
	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		texts = append(texts, c.Text)
	}
	return texts
}

func uniqueTexts(candidates []Candidate) []string {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]string, 0, len(candidates))
	for _, text := range nonEmptyTexts(candidates) {
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		unique = append(unique, text)
	}
	return unique
}
