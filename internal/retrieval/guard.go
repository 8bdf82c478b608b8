package retrieval

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrQueryRejected is returned by Guard.Check for text that must not reach the provider.
var ErrQueryRejected = errors.New("query rejected")

// fileSignature matches content that looks like a raw document rather than a question.
var fileSignature = regexp.MustCompile(`(?i)%PDF|PK\x03\x04|<xml`)

// Guard keeps raw file data away from the embedding provider.
type Guard struct {
	maxChars int
}

// NewGuard creates a guard rejecting queries longer than maxChars runes. 0 disables the limit.
func NewGuard(maxChars int) *Guard {
	return &Guard{maxChars: maxChars}
}

// Check returns an error wrapping ErrQueryRejected when q is binary, too long,
// or carries a document signature.
func (g *Guard) Check(q string) error {
	if !utf8.ValidString(q) || strings.ContainsRune(q, 0) {
		return fmt.Errorf("%w: binary content", ErrQueryRejected)
	}
	if g.maxChars > 0 && utf8.RuneCountInString(q) > g.maxChars {
		return fmt.Errorf("%w: longer than %d characters", ErrQueryRejected, g.maxChars)
	}
	if fileSignature.MatchString(q) {
		return fmt.Errorf("%w: looks like file content", ErrQueryRejected)
	}
	return nil
}
