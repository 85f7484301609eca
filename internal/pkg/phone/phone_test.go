package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
	}{
		{"already international", "+919876543210", "+919876543210"},
		{"spaces and dashes", "+91 98765-43210", "+919876543210"},
		{"international dialing prefix", "00919876543210", "+919876543210"},
		{"national with trunk zero", "09876543210", "+919876543210"},
		{"bare national", "9876543210", "+919876543210"},
		{"parentheses", "(+91) 9876543210", "+919876543210"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, "+91")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrEmpty},
		{"whitespace only", "   ", ErrEmpty},
		{"too short", "12", ErrTooShort},
		{"letters", "+91abc9876543", ErrBadFormat},
		{"zero after plus", "+0919876543210", ErrBadFormat},
		{"too long", "+9198765432109876", ErrBadFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, "+91")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("+919876543210", "+91"))
	assert.False(t, IsValid("hello", "+91"))
}
