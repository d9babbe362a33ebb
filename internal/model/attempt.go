package model

import "time"

// AttemptOutcome records how a proposal submission ended.
type AttemptOutcome string

const (
	OutcomeSent   AttemptOutcome = "sent"
	OutcomeFailed AttemptOutcome = "failed"
)

// ProposalAttempt is one bid submitted against a posting on behalf of a user.
// (UserID, PostingID, Platform) is unique; the database constraint is the
// enforcement point for concurrent submissions.
type ProposalAttempt struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	PostingID string         `json:"posting_id"`
	Platform  string         `json:"platform"`
	BidText   string         `json:"bid_text"`
	Outcome   AttemptOutcome `json:"outcome"`
	SentAt    time.Time      `json:"sent_at"`
}
