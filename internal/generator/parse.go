package generator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// numberedLine matches "1. text", "2) text", "3 - text", "4: text".
var numberedLine = regexp.MustCompile(`^\d+\s*[.)\-:]*\s*(.+)`)

// minParsedRunes is the length a parsed entry must exceed to be kept.
const minParsedRunes = 10

// ParseNumbered extracts numbered list entries from a completion. It returns
// the first want entries, or an error if fewer were found.
func ParseNumbered(text string, want int) ([]string, error) {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		m := numberedLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		entry := strings.TrimSpace(m[1])
		if utf8.RuneCountInString(entry) > minParsedRunes {
			out = append(out, entry)
		}
	}
	if len(out) < want {
		return nil, fmt.Errorf("parsed %d of %d comments", len(out), want)
	}
	return out[:want], nil
}

func buildPrompt(contextComments []string, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional copywriter. Write %d different, original comments based on the following comments:\n", n)
	sb.WriteString(strings.Join(contextComments, "\n"))
	sb.WriteString("\nEach comment should be written in a calm manner and be about 250 characters long. ")
	sb.WriteString("Always number the comments strictly as: 1. ... 2. ... 3. ... and so on.")
	return sb.String()
}
