package cycle

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// servicePatterns match page chrome that shows up among comment texts:
// unavailable-content notices, audio credits, "more" links, like and
// timestamp counters, and bare usernames.
var servicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)к сожалению.*не удается`),
	regexp.MustCompile(`(?i)оригинальное аудио`),
	regexp.MustCompile(`(?i)original audio`),
	regexp.MustCompile(`(?i)подробнее`),
	regexp.MustCompile(`(?i)\d+.*(отметок|часов назад|минут назад|дней назад)`),
	regexp.MustCompile(`(?i)\d+\s*(likes?|hours? ago|minutes? ago|days? ago|[hmdw])$`),
	regexp.MustCompile(`(?i)^[a-z0-9_.]+$`),
}

const (
	minContextRunes = 10
	maxContextRunes = 1000
)

// FilterNoise drops service messages, single words, duplicates, and texts
// outside (10, 1000) runes. Order is preserved.
func FilterNoise(texts []string) []string {
	seen := make(map[string]struct{}, len(texts))
	out := make([]string, 0, len(texts))

	for _, t := range texts {
		t = strings.TrimSpace(t)
		if !strings.Contains(t, " ") {
			continue
		}
		if n := utf8.RuneCountInString(t); n <= minContextRunes || n >= maxContextRunes {
			continue
		}
		if isServiceMessage(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func isServiceMessage(t string) bool {
	for _, p := range servicePatterns {
		if p.MatchString(t) {
			return true
		}
	}
	return false
}
