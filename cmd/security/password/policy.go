package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var sequences = []string{
	"abcdefghijklmnopqrstuvwxyz",
	"0123456789",
}

// Validate checks password policy. It does not mutate input.
func (c Config) Validate(password string) error {
	// Count characters (runes), not bytes, to be user-friendly.
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	if c.Policy.RequireCharClasses && !hasAllCharClasses(password) {
		return ErrMissingCharClass
	}

	if c.Policy.MinUniqueChars > 0 && uniqueRunes(password) < c.Policy.MinUniqueChars {
		return ErrLowVariety
	}

	if c.Policy.RejectSequential && isSequentialRun(password) {
		return ErrSequential
	}

	if c.Policy.RejectVeryWeak {
		if looksVeryWeak(password) {
			return ErrWeakPassword
		}
	}

	return nil
}

func hasAllCharClasses(pw string) bool {
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

func uniqueRunes(pw string) int {
	seen := make(map[rune]struct{}, len(pw))
	for _, r := range pw {
		seen[r] = struct{}{}
	}
	return len(seen)
}

// isSequentialRun reports whether the whole password (case-insensitive) is a
// run of at least four characters taken from one of the known sequences.
func isSequentialRun(pw string) bool {
	lower := strings.ToLower(pw)
	if utf8.RuneCountInString(lower) < 4 {
		return false
	}
	for _, seq := range sequences {
		if strings.Contains(seq, lower) {
			return true
		}
	}
	return false
}

// looksVeryWeak is intentionally minimal and conservative.
// It is not a full zxcvbn-style estimator.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	// Reject if all same char.
	if uniqueRunes(s) == 1 {
		return true
	}

	// Reject if it's only digits and short-ish (common PIN-like).
	onlyDigits := true
	for _, r := range s {
		if !unicode.IsDigit(r) {
			onlyDigits = false
			break
		}
	}
	if onlyDigits && utf8.RuneCountInString(s) < 12 {
		return true
	}

	// Reject common trivial patterns.
	lower := strings.ToLower(s)
	switch lower {
	case "password", "password123", "password1!", "123456", "123456789", "qwerty", "qwerty123", "11111111":
		return true
	}

	return false
}
