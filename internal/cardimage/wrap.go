package cardimage

import (
	"strings"
	"unicode"
)

// noLineStart holds punctuation that must not begin a line.
const noLineStart = "，。！？、；：”’）》」』】…,.!?;:)"

// tokenize splits text into unbreakable units: Latin words and numbers
// stay whole, every other rune (CJK ideographs, punctuation) stands alone.
func tokenize(s string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			word.WriteRune(r)
			continue
		}
		flush()
		tokens = append(tokens, string(r))
	}
	flush()
	return tokens
}

// Wrap breaks text into lines no wider than width as reported by measure.
// The first line is shortened by indent. Closing punctuation is kept on
// the previous line even when that line overflows slightly.
func Wrap(text string, width, indent float64, measure func(string) float64) []string {
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines = append(lines, wrapParagraph(para, width, indent, measure)...)
		indent = 0
	}
	return lines
}

func wrapParagraph(text string, width, indent float64, measure func(string) float64) []string {
	var lines []string
	var cur strings.Builder
	limit := width - indent

	for _, tok := range tokenize(text) {
		if cur.Len() == 0 && tok == " " {
			continue
		}
		candidate := cur.String() + tok
		if cur.Len() == 0 || measure(candidate) <= limit || strings.Contains(noLineStart, tok) {
			cur.WriteString(tok)
			continue
		}
		lines = append(lines, strings.TrimRight(cur.String(), " "))
		cur.Reset()
		limit = width
		if tok != " " {
			cur.WriteString(tok)
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, strings.TrimRight(cur.String(), " "))
	}
	return lines
}
