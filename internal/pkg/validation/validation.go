// Package validation holds the input checks shared by the user, investor
// and admin services.
package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	fullnameRe = regexp.MustCompile(`^[A-Za-z\s\-']+$`)
	pinRe      = regexp.MustCompile(`^\d{4}$`)
	phoneRe    = regexp.MustCompile(`^\+?\d{10,15}$`)
)

const ngCountryCode = "+234"

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword requires 8+ characters with a letter, a digit and a
// punctuation or symbol rune.
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var letter, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return letter && digit && special
}

func IsValidFullname(fullname string) bool {
	return fullname != "" && fullnameRe.MatchString(fullname)
}

// IsValidPin reports whether pin is exactly four digits.
func IsValidPin(pin string) bool {
	return pinRe.MatchString(pin)
}

func IsValidPhone(phone string) bool {
	return phoneRe.MatchString(phone)
}

// NormalizePhone strips separators and rewrites a local eleven digit number
// (0803...) to +234803.... ok is false when the result is not a phone number.
func NormalizePhone(phone string) (string, bool) {
	p := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
	if len(p) == 11 && strings.HasPrefix(p, "0") {
		p = ngCountryCode + p[1:]
	}
	return p, IsValidPhone(p)
}
