// Package normalize validates and canonicalizes user-supplied identifiers
// and names before they reach a store.
//
// Identifiers (account_id, product_id, data_connection_id) live in URLs and
// storage prefixes, so the rules are strict: lowercase letters, digits, and
// single hyphens only, with letters or digits at both ends. Display names
// are free-form but folded for the *_ci lookup fields.
package normalize

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

const (
	// MinIDLength and MaxIDLength bound identifier lengths.
	MinIDLength = 3
	MaxIDLength = 40

	// MaxNameLength bounds display names and titles.
	MaxNameLength = 120
)

var (
	ErrIDTooShort   = errors.New("identifier is too short")
	ErrIDTooLong    = errors.New("identifier is too long")
	ErrIDBadChars   = errors.New("identifier may contain only lowercase letters, digits, and hyphens, and must start and end with a letter or digit")
	ErrIDDoubleDash = errors.New("identifier may not contain consecutive hyphens")
	ErrNameEmpty    = errors.New("name is empty")
	ErrNameTooLong  = errors.New("name is too long")
)

// idPattern matches the allowed shape; the consecutive-hyphen rule is
// checked separately since RE2 has no lookahead.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)

// ID canonicalizes and validates an identifier. Input is lowercased and
// trimmed first so "My-Team " and "my-team" normalize identically.
func ID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if len(id) < MinIDLength {
		return "", ErrIDTooShort
	}
	if len(id) > MaxIDLength {
		return "", ErrIDTooLong
	}
	if !idPattern.MatchString(id) {
		return "", ErrIDBadChars
	}
	if strings.Contains(id, "--") {
		return "", ErrIDDoubleDash
	}
	return id, nil
}

// Name trims and validates a display name or title.
func Name(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrNameEmpty
	}
	if len(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// Fold returns the case- and diacritic-insensitive form used for the
// *_ci lookup fields.
func Fold(s string) string {
	return text.Fold(s)
}
