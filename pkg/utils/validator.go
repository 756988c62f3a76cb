package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// digitFolder maps Persian and Arabic-Indic digits to ASCII. Amounts arrive
// from the portal UI as human-entered text, often with Persian digits and
// thousands separators.
var digitFolder = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// NormalizeDigits folds Persian/Arabic digits in s to their ASCII form.
func NormalizeDigits(s string) string {
	return digitFolder.Replace(s)
}

// ParseAmount parses a human-entered monetary amount: digits are folded to
// ASCII, thousands separators (western and Persian) and whitespace are
// stripped. Returns ok=false for anything that is not a plain integer.
func ParseAmount(s string) (int64, bool) {
	cleaned := NormalizeDigits(strings.TrimSpace(s))
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ',', '٬', ' ', ' ':
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SanitizeString removes control characters from free-text input.
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
