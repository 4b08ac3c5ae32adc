package engine

import (
	"strings"
	"unicode"
)

// maxSentenceRunes splits pathological unterminated runs (tables, code
// blocks, minified text) so a single "sentence" cannot swallow a page.
const maxSentenceRunes = 400

var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "st": {}, "prof": {},
	"sr": {}, "jr": {}, "vs": {}, "etc": {}, "e.g": {}, "i.e": {},
	"fig": {}, "no": {}, "vol": {}, "ch": {}, "pp": {},
}

// splitSentences segments text into narration units. Terminators are
// `.?!…` followed by space or end, except after known abbreviations and
// inside numbers; blank lines and markdown headings always break.
func splitSentences(text string) []string {
	var out []string
	var cur []rune

	flush := func() {
		s := strings.TrimSpace(string(cur))
		cur = cur[:0]
		if s != "" {
			out = append(out, s)
		}
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if isHeading(trimmed) {
			flush()
			cur = append(cur, []rune(trimmed)...)
			flush()
			continue
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}

		runes := []rune(trimmed)
		for i := 0; i < len(runes); i++ {
			r := runes[i]
			cur = append(cur, r)
			if !isTerminator(r) {
				if len(cur) >= maxSentenceRunes && unicode.IsSpace(r) {
					flush()
				}
				continue
			}
			if r == '.' && (abbreviationBefore(cur) || numberAround(runes, i)) {
				continue
			}
			// Closing quotes ride along with the sentence they end.
			j := i + 1
			for j < len(runes) && isClosing(runes[j]) {
				cur = append(cur, runes[j])
				j++
			}
			if j >= len(runes) || unicode.IsSpace(runes[j]) {
				flush()
			}
			i = j - 1
		}
	}
	flush()
	return out
}

// isHeading matches markdown ATX headings: leading #'s followed by a space.
func isHeading(line string) bool {
	i := 0
	for i < len(line) && line[i] == '#' {
		i++
	}
	return i > 0 && i <= 6 && i < len(line) && line[i] == ' '
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isClosing(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '»' || r == '”' || r == '’'
}

// abbreviationBefore reports whether the sentence so far ends in a known
// abbreviation (the trailing '.' already appended).
func abbreviationBefore(cur []rune) bool {
	end := len(cur) - 1 // drop the '.'
	start := end
	for start > 0 && (unicode.IsLetter(cur[start-1]) || cur[start-1] == '.') {
		start--
	}
	word := strings.ToLower(strings.TrimSuffix(string(cur[start:end]), "."))
	_, ok := abbreviations[word]
	return ok
}

// numberAround reports whether the '.' at i sits between digits, as in 3.14.
func numberAround(runes []rune, i int) bool {
	return i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
}

// plainify strips inline markdown syntax for word counting and narration.
func plainify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch r {
		case '#':
			// Heading markers only count at the start.
			if b.Len() == 0 {
				for i < len(runes) && (runes[i] == '#' || runes[i] == ' ') {
					i++
				}
				continue
			}
			b.WriteRune(r)
		case '*', '_', '`', '~':
			// emphasis and code fences
		case '[':
			// [text](url) keeps the text
		case ']':
			if i+1 < len(runes) && runes[i+1] == '(' {
				depth := 0
				j := i + 1
				for j < len(runes) {
					if runes[j] == '(' {
						depth++
					}
					if runes[j] == ')' {
						depth--
						if depth == 0 {
							break
						}
					}
					j++
				}
				i = j
			}
		case '!':
			if i+1 < len(runes) && runes[i+1] == '[' {
				i++
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
		i++
	}
	return strings.TrimSpace(b.String())
}

func countWords(sentence string) int {
	return len(strings.Fields(plainify(sentence)))
}
