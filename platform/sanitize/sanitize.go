// Package sanitize cleans user-provided text before it is stored on a claim.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

var entities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"&nbsp;", " ",
)

// StripHTML removes HTML tags, including tags hidden behind entities.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entities.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text cleans multi-line input such as descriptions, comments and expertise
// reports. Line breaks survive; control characters and trailing spaces do not.
func Text(s string) string {
	s = strings.ReplaceAll(StripHTML(s), "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(dropControl(line, false), unicode.IsSpace)
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// Line cleans single-line input such as a location or a file name. Any run
// of whitespace becomes one space.
func Line(s string) string {
	return strings.Join(strings.Fields(dropControl(StripHTML(s), true)), " ")
}

// TextPtr applies Text to an optional value.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}

func dropControl(s string, keepSpace bool) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || (keepSpace && unicode.IsSpace(r)) {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
