package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lanceworks/autobid-cli/internal/browser"
	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/internal/model"
	"github.com/lanceworks/autobid-cli/internal/platform"
	"github.com/lanceworks/autobid-cli/internal/proposal"
	"github.com/lanceworks/autobid-cli/internal/store"
	"github.com/lanceworks/autobid-cli/internal/submit"
)

// SessionEnsurer establishes an authenticated session on a page.
// *session.Manager implements it.
type SessionEnsurer interface {
	EnsureValid(ctx context.Context, page browser.Page, userID string, strat platform.Strategy) error
	Invalidate(userID, platformName string)
}

// Submission takes one stored posting through generation and bid placement.
type Submission struct {
	browser   browser.Browser
	store     store.Store
	sessions  SessionEnsurer
	generator proposal.Generator
	submitter *submit.Submitter
	registry  *platform.Registry

	fallbackEnabled   bool
	defaultProfile    string
	defaultDirectives string
}

// SubmissionOption configures Submission.
type SubmissionOption func(*Submission)

// WithFallback enables the deterministic proposal template when generation
// fails.
func WithFallback(enabled bool) SubmissionOption {
	return func(s *Submission) { s.fallbackEnabled = enabled }
}

// WithDefaults sets the profile and directives used when the user has no
// stored search profile.
func WithDefaults(profile, directives string) SubmissionOption {
	return func(s *Submission) {
		s.defaultProfile = profile
		s.defaultDirectives = directives
	}
}

// NewSubmission creates the submission pipeline.
func NewSubmission(b browser.Browser, st store.Store, sessions SessionEnsurer, gen proposal.Generator, sub *submit.Submitter, reg *platform.Registry, opts ...SubmissionOption) *Submission {
	s := &Submission{
		browser:   b,
		store:     st,
		sessions:  sessions,
		generator: gen,
		submitter: sub,
		registry:  reg,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit places one proposal for userID on the stored posting. The duplicate
// check runs before any browser work; a concurrent duplicate is still caught
// by the database constraint when the attempt is recorded.
func (s *Submission) Submit(ctx context.Context, userID, postingID string) (*model.ProposalAttempt, error) {
	posting, err := s.store.GetPosting(ctx, postingID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load posting %s", postingID)
	}
	if posting == nil {
		return nil, eris.Errorf("pipeline: posting %s not found", postingID)
	}

	done, err := s.store.HasAttempt(ctx, userID, postingID, posting.Platform)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: check prior attempts")
	}
	if done {
		return nil, faults.ErrDuplicateAttempt
	}

	strat, err := s.registry.Get(posting.Platform)
	if err != nil {
		return nil, err
	}

	text, err := s.generateText(ctx, userID, posting)
	if err != nil {
		return nil, err
	}

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: open page")
	}
	defer page.Close() //nolint:errcheck

	if err := s.sessions.EnsureValid(ctx, page, userID, strat); err != nil {
		return nil, err
	}

	if err := s.submitter.Submit(ctx, page, strat, posting, text); err != nil {
		if eris.Is(err, faults.ErrSessionExpired) {
			s.sessions.Invalidate(userID, posting.Platform)
		}
		// A platform rejection is final for this text; record it so the
		// outcome is queryable. Transport and session failures stay
		// unrecorded and can be retried.
		if faults.IsSubmissionRejected(err) {
			s.recordAttempt(ctx, userID, posting, text, model.OutcomeFailed)
		}
		return nil, err
	}

	attempt := s.recordAttempt(ctx, userID, posting, text, model.OutcomeSent)
	if attempt == nil {
		return nil, faults.ErrDuplicateAttempt
	}

	zap.L().Info("proposal submitted",
		zap.String("platform", posting.Platform),
		zap.String("posting_id", posting.ID),
		zap.String("user_id", userID),
	)
	return attempt, nil
}

// generateText runs the LLM provider, substituting the deterministic
// template when the provider fails and fallback is enabled.
func (s *Submission) generateText(ctx context.Context, userID string, posting *model.JobPosting) (string, error) {
	req := proposal.Request{
		JobTitle:       posting.Title,
		JobDescription: posting.Description,
		Profile:        s.defaultProfile,
		Directives:     s.defaultDirectives,
		Language:       posting.Language,
	}

	profile, err := s.store.GetSearchProfile(ctx, userID)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: load search profile")
	}
	if profile != nil {
		if profile.Profile != "" {
			req.Profile = profile.Profile
		}
		if profile.Directives != "" {
			req.Directives = profile.Directives
		}
	}

	text, err := s.generator.Generate(ctx, req)
	if err == nil {
		return text, nil
	}
	if !s.fallbackEnabled || !faults.IsGenerationFailure(err) {
		return "", err
	}

	zap.L().Warn("generation failed, using fallback proposal",
		zap.String("posting_id", posting.ID),
		zap.Error(err),
	)
	return proposal.FallbackText(req), nil
}

// recordAttempt persists the attempt. A duplicate-key rejection means a
// concurrent submission won the race; callers treat the nil return as
// ErrDuplicateAttempt.
func (s *Submission) recordAttempt(ctx context.Context, userID string, posting *model.JobPosting, text string, outcome model.AttemptOutcome) *model.ProposalAttempt {
	attempt := model.ProposalAttempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		PostingID: posting.ID,
		Platform:  posting.Platform,
		BidText:   text,
		Outcome:   outcome,
		SentAt:    time.Now().UTC(),
	}
	if err := s.store.RecordAttempt(ctx, attempt); err != nil {
		if eris.Is(err, faults.ErrDuplicateAttempt) {
			zap.L().Warn("concurrent attempt already recorded",
				zap.String("posting_id", posting.ID),
				zap.String("user_id", userID),
			)
			return nil
		}
		// The bid is already placed; a bookkeeping failure must not look
		// like a submission failure.
		zap.L().Error("failed to record attempt",
			zap.String("posting_id", posting.ID),
			zap.Error(err),
		)
	}
	return &attempt
}
