// Package faults defines the typed error taxonomy shared across the
// automation core. Expected conditions are values matched with errors.As /
// errors.Is; only genuinely unexpected failures travel as wrapped eris errors.
package faults

import (
	"errors"
	"fmt"
)

// ErrSessionExpired indicates the persisted session is absent, expired, or
// failed live validation. Triggers one credential login attempt.
var ErrSessionExpired = errors.New("faults: session expired or invalid")

// ErrDuplicateAttempt indicates a proposal was already submitted for the
// (user, posting, platform) key. Raised before any browser interaction.
var ErrDuplicateAttempt = errors.New("faults: proposal already submitted for this posting")

// ErrPostingUnavailable indicates the posting was removed or closed between
// discovery and submission.
var ErrPostingUnavailable = errors.New("faults: posting no longer available")

// LayoutChangedError indicates a selector the platform strategy depends on
// never appeared. Fatal for the current cycle, never auto-retried.
type LayoutChangedError struct {
	Platform string
	Selector string
}

func (e *LayoutChangedError) Error() string {
	return fmt.Sprintf("faults: %s layout changed, selector %q not found", e.Platform, e.Selector)
}

// CaptchaDetectedError indicates an anti-automation challenge is present.
// Requires manual intervention; never retried automatically.
type CaptchaDetectedError struct {
	Platform string
	PageURL  string
}

func (e *CaptchaDetectedError) Error() string {
	return fmt.Sprintf("faults: captcha detected on %s at %s", e.Platform, e.PageURL)
}

// LoginFailedError carries the platform's inline login error when one was
// shown, otherwise a generic reason.
type LoginFailedError struct {
	Platform string
	Reason   string
}

func (e *LoginFailedError) Error() string {
	return fmt.Sprintf("faults: login failed on %s: %s", e.Platform, e.Reason)
}

// GenerationServiceError carries enough context from a failed text-generation
// call for diagnosis. Callers may substitute fallback text instead of failing
// the submission pipeline.
type GenerationServiceError struct {
	StatusCode int
	Body       string // truncated
	JobTitle   string
	TitleLen   int
	DescLen    int
	Err        error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("faults: generation failed for %q (status=%d, title=%d chars, desc=%d chars): %s",
		e.JobTitle, e.StatusCode, e.TitleLen, e.DescLen, e.Body)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// SubmissionRejectedError surfaces the platform's inline error verbatim.
type SubmissionRejectedError struct {
	Platform string
	Message  string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("faults: %s rejected the proposal: %s", e.Platform, e.Message)
}

// IsLayoutChanged reports whether err is or wraps a LayoutChangedError.
func IsLayoutChanged(err error) bool {
	var le *LayoutChangedError
	return errors.As(err, &le)
}

// IsCaptcha reports whether err is or wraps a CaptchaDetectedError.
func IsCaptcha(err error) bool {
	var ce *CaptchaDetectedError
	return errors.As(err, &ce)
}

// IsLoginFailed reports whether err is or wraps a LoginFailedError.
func IsLoginFailed(err error) bool {
	var le *LoginFailedError
	return errors.As(err, &le)
}

// IsGenerationFailure reports whether err is or wraps a GenerationServiceError.
func IsGenerationFailure(err error) bool {
	var ge *GenerationServiceError
	return errors.As(err, &ge)
}

// IsSubmissionRejected reports whether err is or wraps a SubmissionRejectedError.
func IsSubmissionRejected(err error) bool {
	var se *SubmissionRejectedError
	return errors.As(err, &se)
}
