package auth

import (
	"time"

	"github.com/Nehilsa2/console_keepalive/classify"
)

// Credentials are the provider login secrets for one run.
type Credentials struct {
	Username   string
	Password   string
	TOTPSecret string
}

// Flags record which optional stages actually happened. They only ever
// move from false to true.
type Flags struct {
	ProviderButtonClicked  bool `json:"provider_button_clicked"`
	TwoFactorHandled       bool `json:"two_factor_handled"`
	AuthorizeHandled       bool `json:"authorize_handled"`
	PostLoginActionClicked bool `json:"post_login_action_clicked"`
	PostLoginModalDetected bool `json:"post_login_modal_detected"`
}

// StepRecord is one entry of the step log.
type StepRecord struct {
	Step    Step
	Outcome Outcome
	Elapsed time.Duration
}

// Session is the mutable state of a single run. The Runner refreshes the
// page snapshot after every step.
type Session struct {
	creds Credentials

	CurrentURL  string
	PageTitle   string
	PageContent string

	steps  []StepRecord
	flags  Flags
	result *classify.Result
	err    error
}

// NewSession starts a run with creds. They cannot be changed afterwards.
func NewSession(creds Credentials) *Session {
	return &Session{creds: creds}
}

func (s *Session) Credentials() Credentials {
	return s.creds
}

// Steps returns a copy of the step log.
func (s *Session) Steps() []StepRecord {
	return append([]StepRecord(nil), s.steps...)
}

func (s *Session) Flags() Flags {
	return s.flags
}

func (s *Session) MarkProviderButtonClicked()  { s.flags.ProviderButtonClicked = true }
func (s *Session) MarkTwoFactorHandled()       { s.flags.TwoFactorHandled = true }
func (s *Session) MarkAuthorizeHandled()       { s.flags.AuthorizeHandled = true }
func (s *Session) MarkPostLoginActionClicked() { s.flags.PostLoginActionClicked = true }
func (s *Session) MarkPostLoginModalDetected() { s.flags.PostLoginModalDetected = true }

// Result returns the classification, if the terminal step ran.
func (s *Session) Result() (classify.Result, bool) {
	if s.result == nil {
		return classify.Result{}, false
	}
	r := *s.result
	r.Evidence = append([]classify.Signal(nil), r.Evidence...)
	return r, true
}

// Err returns the error that stopped the run, if any.
func (s *Session) Err() error {
	return s.err
}

// Fail stops the run with err unless it already failed. Used for errors
// raised outside the step sequence, e.g. a browser that never launched.
func (s *Session) Fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) record(step Step, out Outcome, elapsed time.Duration) {
	s.steps = append(s.steps, StepRecord{Step: step, Outcome: out, Elapsed: elapsed})
	if out.IsFatal() {
		s.Fail(out.Err)
	}
}

func (s *Session) setResult(r classify.Result) {
	if s.result != nil {
		return
	}
	s.result = &r
}
