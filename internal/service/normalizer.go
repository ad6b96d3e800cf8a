package service

import "strings"

// stripPrefixes is tried in order; the first matching prefix is removed.
// Order matters: longer, more specific prefixes must be listed before
// shorter ones they contain (e.g. "what are" before "what is" would be
// wrong either way since they don't overlap, but the ordering contract
// is still "try in given order").
var stripPrefixes = []string{
	"what is", "what are", "what's",
	"can you", "could you", "would you",
	"please explain", "please tell me",
	"how does", "how do", "how is",
	"tell me about", "explain",
}

// fillerWords is the closed set from §6.3.
var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "shall": true, "this": true, "that": true,
	"these": true, "those": true, "i": true, "me": true, "my": true,
	"we": true, "our": true, "you": true, "your": true,
}

// Normalize reduces a natural-language question to a keyword-oriented
// query. It is a pure function: idempotent on its own output, and never
// empty for an input with any non-whitespace character.
func Normalize(question string) string {
	trimmed := strings.ToLower(strings.TrimSpace(question))
	if trimmed == "" {
		return trimmed
	}

	original := trimmed
	trimmed = strings.TrimRight(trimmed, "?.")
	trimmed = strings.TrimSpace(trimmed)

	// Strip to a fixed point, not just once: a single pass can leave a
	// result that still starts with another stripPrefixes entry (e.g.
	// "what is explain mode" -> "explain mode"), and stopping there would
	// make a second Normalize call strip further, breaking
	// normalize(normalize(q)) == normalize(q).
	for {
		strippedAny := false
		for _, prefix := range stripPrefixes {
			if !strings.HasPrefix(trimmed, prefix) {
				continue
			}
			next := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
			if next == trimmed {
				continue
			}
			trimmed = next
			strippedAny = true
			break
		}
		if !strippedAny {
			break
		}
	}

	tokens := strings.Fields(trimmed)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !fillerWords[tok] {
			kept = append(kept, tok)
		}
	}

	if len(kept) == 0 {
		return strings.ToLower(strings.TrimSpace(original))
	}

	return strings.Join(kept, " ")
}
