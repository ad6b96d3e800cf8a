package service

import "strings"

// ValidatorService verifies an answer conforms to the output contract
// of §4.7. Missing sections are errors but the answer is still returned
// to the caller; only the audit log records the failure.
type ValidatorService struct{}

func NewValidatorService() *ValidatorService { return &ValidatorService{} }

// Validate checks section presence and non-emptiness. For refusals only
// "## Answer" is required; otherwise "## Answer", "## Supporting
// Clauses", and "## Citations" must all be present and non-empty.
func (v *ValidatorService) Validate(answerText string, refused bool) (ok bool, errs []string) {
	if !hasNonEmptySection(answerText, "## Answer") {
		errs = append(errs, "missing or empty ## Answer section")
	}
	if !refused {
		if !hasNonEmptySection(answerText, "## Supporting Clauses") {
			errs = append(errs, "missing or empty ## Supporting Clauses section")
		}
		if !hasNonEmptySection(answerText, "## Citations") {
			errs = append(errs, "missing or empty ## Citations section")
		}
	}
	return len(errs) == 0, errs
}

// hasNonEmptySection reports whether heading appears in text with at
// least one non-whitespace character before the next "## " heading (or
// end of text).
func hasNonEmptySection(text, heading string) bool {
	idx := strings.Index(text, heading)
	if idx < 0 {
		return false
	}
	rest := text[idx+len(heading):]
	nextIdx := strings.Index(rest, "\n## ")
	var body string
	if nextIdx >= 0 {
		body = rest[:nextIdx]
	} else {
		body = rest
	}
	return strings.TrimSpace(body) != ""
}
