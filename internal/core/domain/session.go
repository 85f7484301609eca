package domain

import "time"

// SessionStep is a state of the per-user authentication machine
type SessionStep string

const (
	StepAwaitingPinSetup SessionStep = "AWAITING_PIN_SETUP" // new user, no PIN yet
	StepIdle             SessionStep = "IDLE"               // authenticated, nothing pending
	StepAwaitingOtp      SessionStep = "AWAITING_OTP"       // OTP issued, waiting for the 6-digit code
	StepAwaitingPin      SessionStep = "AWAITING_PIN"       // OTP verified, waiting for the 4-digit PIN
	StepLocked           SessionStep = "LOCKED"             // too many failed PIN attempts; only RESET exits
)

// SessionState tracks a user's progress through the OTP+PIN challenge.
// It is embedded in the user record and mutated only inside a locked
// read-modify-write, so concurrent SMS from the same number never interleave
// a transition. Otp and OtpExpiresAt are both set or both empty;
// PendingCommand is non-empty only in AWAITING_OTP / AWAITING_PIN.
type SessionState struct {
	Step           SessionStep `gorm:"size:32;default:'AWAITING_PIN_SETUP'" json:"step"`
	Otp            string      `gorm:"size:12" json:"-"`
	OtpExpiresAt   *time.Time  `json:"-"`
	OtpAttempts    int         `gorm:"default:0" json:"-"`
	PendingCommand string      `gorm:"type:text" json:"-"`
	FailedAttempts int         `gorm:"default:0" json:"failed_attempts"`
}

// OtpValid reports whether an OTP is outstanding and not yet expired.
func (s *SessionState) OtpValid(now time.Time) bool {
	return s.Otp != "" && s.OtpExpiresAt != nil && now.Before(*s.OtpExpiresAt)
}

// SetOtp records a freshly issued OTP, replacing any outstanding one.
// Only one OTP can be live per user at a time.
func (s *SessionState) SetOtp(code string, expiresAt time.Time) {
	s.Otp = code
	s.OtpExpiresAt = &expiresAt
	s.OtpAttempts = 0
}

// Pending decodes the stored pending command, or nil when none is stored.
func (s *SessionState) Pending() (*ParsedCommand, error) {
	if s.PendingCommand == "" {
		return nil, nil
	}
	return DecodeCommand(s.PendingCommand)
}

// SetPending stores cmd as the command awaiting challenge completion.
func (s *SessionState) SetPending(cmd *ParsedCommand) error {
	encoded, err := cmd.Encode()
	if err != nil {
		return err
	}
	s.PendingCommand = encoded
	return nil
}

// ClearChallenge drops the OTP and pending command, leaving counters alone.
func (s *SessionState) ClearChallenge() {
	s.Otp = ""
	s.OtpExpiresAt = nil
	s.OtpAttempts = 0
	s.PendingCommand = ""
}

// Reset returns the session to IDLE, clearing every challenge artifact and
// the failed-attempt counter. Valid from any step, including LOCKED.
func (s *SessionState) Reset() {
	s.Step = StepIdle
	s.FailedAttempts = 0
	s.ClearChallenge()
}

// Consistent reports whether the pending-command integrity invariant holds:
// a session in a challenge step must be backed by a pending command.
func (s *SessionState) Consistent() bool {
	if s.Step == StepAwaitingOtp || s.Step == StepAwaitingPin {
		return s.PendingCommand != ""
	}
	return true
}
