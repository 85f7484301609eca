package password

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the default bcrypt cost
	DefaultCost = 12
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// HashPin hashes a wallet PIN using bcrypt. The raw PIN is never stored.
func HashPin(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// VerifyPin compares a submitted PIN with a stored hash.
func VerifyPin(pin, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	return err == nil
}

// ValidatePin checks that a PIN is exactly 4 digits.
func ValidatePin(pin string) bool {
	return pinPattern.MatchString(pin)
}

// Hash hashes an ops console password using bcrypt.
func Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify compares a password with a hash.
func Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
