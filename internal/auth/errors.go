package auth

import "fmt"

// Stages of the login exchange an AuthenticationError can come from
const (
	StageChallenge = "challenge"
	StageSolve     = "solve"
	StageSubmit    = "submit"
	StageVerify    = "verify"
)

// AuthenticationError is fatal for a run: no items are processed after it
type AuthenticationError struct {
	Stage  string
	Reason string // portal-provided message when available
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil && e.Reason == "" {
		return fmt.Sprintf("authentication failed at %s: %v", e.Stage, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("authentication failed at %s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed at %s: %s", e.Stage, e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
