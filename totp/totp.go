// Package totp produces time-based one-time passwords for the provider's
// second-factor challenge.
package totp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Period is the length of one code window.
const Period = 30 * time.Second

// ErrInvalidSecret is returned when the shared secret is not valid base32.
var ErrInvalidSecret = errors.New("invalid TOTP secret")

var opts = totp.ValidateOpts{
	Period:    uint(Period / time.Second),
	Skew:      0,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Generate returns the 6 digit code for secret at instant t.
// Whitespace inside the secret is ignored and case does not matter, which
// matches how authenticator apps display seeds ("abcd efgh ...").
func Generate(secret string, t time.Time) (string, error) {
	normalized := normalize(secret)
	if normalized == "" {
		return "", fmt.Errorf("%w: empty secret", ErrInvalidSecret)
	}

	code, err := totp.GenerateCodeCustom(normalized, t, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return code, nil
}

// Remaining reports how long the code generated at t stays valid.
func Remaining(t time.Time) time.Duration {
	elapsed := time.Duration(t.Unix()%int64(Period/time.Second)) * time.Second
	return Period - elapsed
}

func normalize(secret string) string {
	secret = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			return -1
		}
		return r
	}, secret)
	return strings.ToUpper(strings.TrimRight(secret, "="))
}
