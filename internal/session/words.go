package session

import "strings"

// lastWords returns the trailing n whitespace-separated words of text,
// rejoined with single spaces. Empty tokens are discarded, so a transcript
// of pure whitespace yields "".
func lastWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) == 0 || n <= 0 {
		return ""
	}
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
