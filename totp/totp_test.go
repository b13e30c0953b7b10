package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 appendix B seed ("12345678901234567890") in base32.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerate_RFCVectors(t *testing.T) {
	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}

	for _, tt := range tests {
		code, err := Generate(rfcSecret, time.Unix(tt.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, tt.want, code, "unix=%d", tt.unix)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 12, 0, time.UTC)

	first, err := Generate(rfcSecret, now)
	require.NoError(t, err)
	second, err := Generate(rfcSecret, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 6)
	for _, r := range first {
		assert.True(t, r >= '0' && r <= '9', "non-digit %q in %s", r, first)
	}
}

func TestGenerate_SameWindowSameCode(t *testing.T) {
	start := time.Unix(1111111110, 0) // window boundary
	a, err := Generate(rfcSecret, start)
	require.NoError(t, err)
	b, err := Generate(rfcSecret, start.Add(29*time.Second))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGenerate_NormalizesSecret(t *testing.T) {
	now := time.Unix(1234567890, 0)
	spaced := "gezd gnbv gy3t qojq gezd gnbv gy3t qojq"

	code, err := Generate(spaced, now)
	require.NoError(t, err)
	assert.Equal(t, "005924", code)
}

func TestGenerate_InvalidSecret(t *testing.T) {
	for _, secret := range []string{"", "not-base32!!", "0189"} {
		_, err := Generate(secret, time.Now())
		assert.ErrorIs(t, err, ErrInvalidSecret, "secret=%q", secret)
	}
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 30*time.Second, Remaining(time.Unix(60, 0)))
	assert.Equal(t, 1*time.Second, Remaining(time.Unix(89, 0)))
}
