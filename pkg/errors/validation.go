package errors

import (
	"strings"
	"unicode"
)

// ValidateIdentifier validates a node or value identifier from an external
// graph file. It rejects names that could not have been produced by a
// well-formed exporter.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No null bytes
//   - Maximum length of 512 characters
func ValidateIdentifier(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "identifier cannot be empty")
	}

	if len(name) > 512 {
		return New(ErrCodeInvalidInput, "identifier too long (max 512 characters)")
	}

	if strings.ContainsRune(name, 0) {
		return New(ErrCodeInvalidInput, "identifier contains a null byte")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "identifier contains control characters")
		}
	}

	return nil
}
