package domain

import "errors"

// Auth challenge errors
var (
	ErrOtpExpired    = errors.New("otp expired")
	ErrOtpMismatch   = errors.New("otp mismatch")
	ErrPinMismatch   = errors.New("pin mismatch")
	ErrAccountLocked = errors.New("account locked")
	ErrNoPinSet      = errors.New("no pin set")
)

// Queue errors
var (
	ErrMessageNotFound = errors.New("message not found")
)

// ParseErrorKind classifies why an SMS body could not be parsed
type ParseErrorKind string

const (
	ParseUnrecognized        ParseErrorKind = "UNRECOGNIZED"
	ParseInvalidAmount       ParseErrorKind = "INVALID_AMOUNT"
	ParseInvalidPhoneNumber  ParseErrorKind = "INVALID_PHONE_NUMBER"
	ParseInsufficientMembers ParseErrorKind = "INSUFFICIENT_MEMBERS"
)

// ParseError is returned when no grammar rule matches an SMS body, or a rule
// matched but a captured value failed validation. Hint is safe to send back
// to the user verbatim.
type ParseError struct {
	Kind ParseErrorKind
	Hint string
}

func (e *ParseError) Error() string {
	return string(e.Kind) + ": " + e.Hint
}

// NewParseError builds a ParseError with a user-facing hint.
func NewParseError(kind ParseErrorKind, hint string) *ParseError {
	return &ParseError{Kind: kind, Hint: hint}
}

// AsParseError unwraps err into a *ParseError when possible.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
