package errors

import (
	"strings"
	"unicode"
)

// MaxIDLength bounds identifiers accepted from files and HTTP requests.
const MaxIDLength = 128

// ValidateID validates an opaque identifier (person, relationship or family
// space id) received from outside the process.
//
// The rules are conservative because ids end up in cache keys, file names
// and URL paths:
//   - No empty ids
//   - No control characters or whitespace
//   - No path separators
//   - Maximum length of [MaxIDLength] bytes
func ValidateID(kind, id string) error {
	if id == "" {
		return New(ErrCodeInvalidID, "%s id cannot be empty", kind)
	}

	if len(id) > MaxIDLength {
		return New(ErrCodeInvalidID, "%s id too long (max %d characters)", kind, MaxIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidID, "%s id contains invalid characters: %q", kind, id)
		}
	}

	if strings.ContainsAny(id, `/\`) {
		return New(ErrCodeInvalidID, "%s id cannot contain path separators: %q", kind, id)
	}

	return nil
}
