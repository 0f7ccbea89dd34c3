package generator

import (
	"math/rand/v2"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

var fallbackComments = []string{
	"Completely agree with the author on this one.",
	"Very true words. Thank you for such an important post.",
	"These are exactly the thoughts worth sharing with people. Well done!",
	"Words like these inspire and give strength. Thank you!",
	"Great stance! I fully share these views.",
	"Calm and clear, this is how it should be said.",
	"Thank you for putting this so simply and honestly.",
}

var fallbackTemplates = []string{
	"Fully support this! %s",
	"Very important words. %s",
	"Absolutely agree. %s",
	"The right stance! %s",
	"Wise thoughts. %s",
}

// contextStopWords are frequent words that make poor topic anchors.
var contextStopWords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "their": {}, "there": {},
	"these": {}, "those": {}, "which": {}, "would": {}, "could": {},
	"should": {}, "really": {}, "every": {}, "очень": {}, "всего": {},
	"более": {}, "себя": {}, "было": {}, "есть": {}, "даже": {},
}

// Fallback builds comments from a static pool. It is safe for concurrent use.
type Fallback struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallback creates a Fallback. A nil rng uses a randomly seeded source.
func NewFallback(rng *rand.Rand) *Fallback {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Fallback{rng: rng}
}

// Batch returns the first n static comments.
func (f *Fallback) Batch(n int) []string {
	if n <= 0 || n > len(fallbackComments) {
		n = len(fallbackComments)
	}
	return append([]string(nil), fallbackComments[:n]...)
}

// Single returns one comment. With context it fills a template with a
// topic word taken from the context; otherwise it picks a static comment.
func (f *Fallback) Single(contextComments []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	words := contextWords(contextComments)
	if len(words) == 0 {
		return fallbackComments[f.rng.IntN(len(fallbackComments))]
	}

	tmpl := fallbackTemplates[f.rng.IntN(len(fallbackTemplates))]
	word := words[f.rng.IntN(len(words))]
	return strings.TrimSpace(strings.Replace(tmpl, "%s", "Especially about "+word+".", 1))
}

// contextWords returns lowercased words longer than four runes that are
// not stop words, in order of appearance.
func contextWords(contextComments []string) []string {
	var out []string
	for _, c := range contextComments {
		for _, w := range strings.Fields(strings.ToLower(c)) {
			w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
			if utf8.RuneCountInString(w) <= 4 {
				continue
			}
			if _, stop := contextStopWords[w]; stop {
				continue
			}
			out = append(out, w)
		}
	}
	return out
}
