package captions

import "unicode"

// Split breaks text into caption tokens: words and the whitespace runs
// between them, in order. Whitespace is kept as its own tokens so that
// concatenating the result reproduces the input exactly.
func Split(text string) []string {
	var tokens []string
	start := 0
	inSpace := false

	for i, r := range text {
		isSpace := unicode.IsSpace(r)
		if i == 0 {
			inSpace = isSpace
			continue
		}
		if isSpace != inSpace {
			tokens = append(tokens, text[start:i])
			start = i
			inSpace = isSpace
		}
	}

	if start < len(text) {
		tokens = append(tokens, text[start:])
	}

	return tokens
}
