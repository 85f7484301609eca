package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"textpesa/internal/adapters/cache"
	"textpesa/internal/pkg/password"
)

// Challenge errors
var (
	ErrOtpThrottled = errors.New("otp recently issued, wait before requesting another")
)

const otpLength = 6

// ChallengeService issues OTP codes and verifies PINs. It holds no per-user
// state of its own — issued OTPs live in the session embedded in the user
// record, so overwriting the session invalidates any previously outstanding
// code for that user.
type ChallengeService struct {
	ttl     time.Duration
	limiter cache.Limiter
	now     func() time.Time
}

// NewChallengeService creates a challenge service. limiter bounds OTP
// issuance per phone number.
func NewChallengeService(ttl time.Duration, limiter cache.Limiter) *ChallengeService {
	return &ChallengeService{
		ttl:     ttl,
		limiter: limiter,
		now:     time.Now,
	}
}

// GenerateOtp produces a cryptographically random 6-digit code and its
// expiry. At most one OTP per phone per minute is issued.
func (s *ChallengeService) GenerateOtp(ctx context.Context, phoneNumber string) (string, time.Time, error) {
	allowed, _ := s.limiter.Allow(ctx, "otp:issue:"+phoneNumber, 1, time.Minute)
	if !allowed {
		return "", time.Time{}, ErrOtpThrottled
	}

	code, err := generateSecureOtp(otpLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate OTP: %w", err)
	}

	return code, s.now().Add(s.ttl), nil
}

// HashPin hashes a 4-digit PIN for storage. Raw PINs are never persisted.
func (s *ChallengeService) HashPin(pin string) (string, error) {
	return password.HashPin(pin)
}

// VerifyPin compares a submitted PIN against the stored hash.
func (s *ChallengeService) VerifyPin(pin, hash string) bool {
	return password.VerifyPin(pin, hash)
}

// generateSecureOtp generates a random numeric code from crypto/rand.
// A predictable OTP defeats the whole two-factor design.
func generateSecureOtp(length int) (string, error) {
	result := ""
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		result += fmt.Sprintf("%d", n.Int64())
	}
	return result, nil
}
