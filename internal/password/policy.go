package password

import (
	"errors"
	"strings"
	"unicode"
)

// Complexity rules applied before a candidate password reaches the
// authenticator: length 8-20 with at least one lowercase letter, one
// uppercase letter, one digit and one character from specialSet.
const specialSet = "%$#"

var (
	ErrLength    = errors.New("password must be between 8 and 20 characters")
	ErrLowercase = errors.New("password must contain at least one lowercase letter ('a'-'z')")
	ErrUppercase = errors.New("password must contain at least one uppercase letter ('A'-'Z')")
	ErrDigit     = errors.New("password must contain at least one digit ('0'-'9')")
	ErrSpecial   = errors.New("password must contain at least one special character ('%', '$' or '#')")
)

// Validate checks the candidate against the complexity policy and returns
// every rule it violates joined into a single error, or nil.
func Validate(candidate string) error {
	var violations []error

	if len(candidate) < 8 || len(candidate) > 20 {
		violations = append(violations, ErrLength)
	}
	if !strings.ContainsFunc(candidate, unicode.IsLower) {
		violations = append(violations, ErrLowercase)
	}
	if !strings.ContainsFunc(candidate, unicode.IsUpper) {
		violations = append(violations, ErrUppercase)
	}
	if !strings.ContainsFunc(candidate, unicode.IsDigit) {
		violations = append(violations, ErrDigit)
	}
	if !strings.ContainsAny(candidate, specialSet) {
		violations = append(violations, ErrSpecial)
	}

	return errors.Join(violations...)
}
