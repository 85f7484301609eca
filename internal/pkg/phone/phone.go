package phone

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmpty     = errors.New("phone number is empty")
	ErrTooShort  = errors.New("phone number is too short")
	ErrBadFormat = errors.New("phone number is not a valid E.164 number")
)

// e164 matches a normalized international number: + followed by 8-15 digits,
// no leading zero after the plus.
var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

var separators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// Normalize converts a raw MSISDN as typed into an SMS into E.164 form.
// defaultCountry is the dialing prefix (e.g. "+91") applied to national
// numbers that arrive without one.
func Normalize(raw, defaultCountry string) (string, error) {
	s := separators.Replace(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrEmpty
	}

	switch {
	case strings.HasPrefix(s, "+"):
		// already international
	case strings.HasPrefix(s, "00"):
		// international dialing prefix
		s = "+" + s[2:]
	case strings.HasPrefix(s, "0"):
		// national format with trunk zero
		s = defaultCountry + s[1:]
	default:
		s = defaultCountry + s
	}

	if len(s) < 9 {
		return "", ErrTooShort
	}
	if !e164.MatchString(s) {
		return "", ErrBadFormat
	}
	return s, nil
}

// IsValid reports whether raw normalizes to a valid E.164 number.
func IsValid(raw, defaultCountry string) bool {
	_, err := Normalize(raw, defaultCountry)
	return err == nil
}
