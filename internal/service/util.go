package service

import "strings"

// splitWhitespaceLower tokenizes text on whitespace after lowercasing,
// the tokenization the LexicalIndex collaborator expects.
func splitWhitespaceLower(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
