package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsEmailIdentifier reports whether a login identifier should be looked up by email.
func IsEmailIdentifier(s string) bool {
	return strings.Contains(s, "@")
}

// validEmail is a shape check only; deliverability is not verified.
func validEmail(s string) bool {
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 64 {
		return false
	}
	// "@" would make the username ambiguous with an email identifier at login.
	return !strings.ContainsAny(s, "@ \t\r\n")
}
