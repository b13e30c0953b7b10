package auth

import (
	"errors"
	"fmt"
)

// Fatal step errors. Callers match them with errors.Is.
var (
	ErrNavigationUnreachable     = errors.New("target site unreachable")
	ErrProviderControlNotFound   = errors.New("provider login control not found")
	ErrCredentialFormNotFound    = errors.New("credential form not found")
	ErrCredentialsRejected       = errors.New("login failed: invalid credentials")
	ErrMissingSecondFactorSecret = errors.New("second factor required but GH_2FA_SECRET is not set")
	ErrSecondFactorInputNotFound = errors.New("second factor input not found")
	ErrLoginNotVerified          = errors.New("login could not be verified")
)

// Step names one stage of the login flow.
type Step string

const (
	StepLanding          Step = "landing"
	StepProviderRedirect Step = "provider_redirect"
	StepCredentialSubmit Step = "credential_submit"
	StepTwoFactor        Step = "two_factor"
	StepAuthorize        Step = "authorize"
	StepPostLoginAction  Step = "post_login_action"
	StepClassify         Step = "classify"
)

// Status is the kind of a step outcome.
type Status int

const (
	StatusSucceeded Status = iota
	StatusSucceededWithFallback
	StatusSkipped
	StatusFailedRecoverable
	StatusFailedFatal
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusSucceededWithFallback:
		return "succeeded_with_fallback"
	case StatusSkipped:
		return "skipped"
	case StatusFailedRecoverable:
		return "failed_recoverable"
	case StatusFailedFatal:
		return "failed_fatal"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of one step. Only the fields relevant to Status
// are set: Index for fallbacks, Reason for skips and recoverable failures,
// Err for fatal failures.
type Outcome struct {
	Status Status
	Index  int
	Reason string
	Err    error
}

func Succeeded() Outcome {
	return Outcome{Status: StatusSucceeded}
}

// SucceededWithFallback records that candidate index, not the preferred
// one, did the job. Index 0 is a plain success.
func SucceededWithFallback(index int, reason string) Outcome {
	if index == 0 && reason == "" {
		return Succeeded()
	}
	return Outcome{Status: StatusSucceededWithFallback, Index: index, Reason: reason}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

func Recoverable(reason string) Outcome {
	return Outcome{Status: StatusFailedRecoverable, Reason: reason}
}

func Fatal(err error) Outcome {
	return Outcome{Status: StatusFailedFatal, Err: err}
}

// IsFatal reports whether the run must stop.
func (o Outcome) IsFatal() bool {
	return o.Status == StatusFailedFatal
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusSucceededWithFallback:
		if o.Reason != "" {
			return fmt.Sprintf("%s (candidate %d, %s)", o.Status, o.Index, o.Reason)
		}
		return fmt.Sprintf("%s (candidate %d)", o.Status, o.Index)
	case StatusSkipped, StatusFailedRecoverable:
		return fmt.Sprintf("%s: %s", o.Status, o.Reason)
	case StatusFailedFatal:
		return fmt.Sprintf("%s: %v", o.Status, o.Err)
	default:
		return o.Status.String()
	}
}
