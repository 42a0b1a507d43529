package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5551234567", "+15551234567"},
		{"(555) 123-4567", "+15551234567"},
		{"15551234567", "+15551234567"},
		{"+1 555 123 4567", "+15551234567"},
		{"", ""},
		{"447911123456", "+447911123456"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), "input %q", tt.in)
	}
}

func TestHashPhoneStable(t *testing.T) {
	a := HashPhone(NormalizePhone("5551234567"))
	b := HashPhone(NormalizePhone("(555) 123-4567"))
	assert.NotEmpty(t, a)
	assert.Equal(t, a, b, "formatting variants hash identically")
	assert.Empty(t, HashPhone(""))
}

func TestLastFour(t *testing.T) {
	assert.Equal(t, "4567", LastFour("+15551234567"))
	assert.Equal(t, "", LastFour("12"))
}

func TestFormatUS(t *testing.T) {
	assert.Equal(t, "(555) 123-4567", FormatUS("+15551234567"))
	assert.Equal(t, "+447911123456", FormatUS("+447911123456"), "non-US passes through")
}
