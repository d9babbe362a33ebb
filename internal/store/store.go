package store

import (
	"context"
	"time"

	"github.com/lanceworks/autobid-cli/internal/model"
)

// Store defines the persistence interface for the automation core. Postings
// are written once and never mutated; the proposal_attempts unique constraint
// on (user_id, posting_id, platform) is the true enforcement point for the
// at-most-one-bid invariant; HasAttempt is an optimization, not the source
// of truth.
type Store interface {
	// Postings
	FilterNewPostings(ctx context.Context, platform string, postings []model.JobPosting) ([]model.JobPosting, error)
	SavePostings(ctx context.Context, postings []model.JobPosting) (int, error)
	GetPosting(ctx context.Context, id string) (*model.JobPosting, error)

	// Credentials and sessions
	GetCredential(ctx context.Context, userID, platform string) (*model.PlatformCredential, error)
	SaveSession(ctx context.Context, userID, platform string, blob []byte, expiresAt time.Time) error

	// Proposal attempts
	HasAttempt(ctx context.Context, userID, postingID, platform string) (bool, error)
	RecordAttempt(ctx context.Context, attempt model.ProposalAttempt) error

	// Profiles and recipients (read-only to the core)
	GetSearchProfile(ctx context.Context, userID string) (*model.SearchProfile, error)
	ListActiveRecipients(ctx context.Context) ([]model.Recipient, error)
	GetRecipient(ctx context.Context, id string) (*model.Recipient, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
