package utils

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	scriptRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// handle@psp, e.g. ravi.k@okaxis
	upiRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,256}@[a-zA-Z][a-zA-Z0-9]{1,63}$`)
)

// SanitizeInput cleans free text before it is stored and shown to the
// other party of a booking
func SanitizeInput(input string) string {
	input = scriptRegex.ReplaceAllString(input, "")

	// Remove control characters
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, input)

	return html.EscapeString(strings.TrimSpace(input))
}

// SanitizeEmail lowercases and validates an email address
func SanitizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return "", errors.New("invalid email format")
	}
	return email, nil
}

// SanitizeUPI validates a UPI virtual payment address
func SanitizeUPI(vpa string) (string, error) {
	vpa = strings.TrimSpace(vpa)
	if !upiRegex.MatchString(vpa) {
		return "", errors.New("invalid UPI ID")
	}
	return strings.ToLower(vpa), nil
}
