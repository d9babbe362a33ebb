package session

import (
	"context"
	"time"

	"github.com/lanceworks/autobid-cli/internal/model"
)

// storeStub provides no-op implementations for the store methods the session
// manager never touches.
type storeStub struct{}

func (storeStub) FilterNewPostings(context.Context, string, []model.JobPosting) ([]model.JobPosting, error) {
	return nil, nil
}
func (storeStub) SavePostings(context.Context, []model.JobPosting) (int, error) { return 0, nil }
func (storeStub) GetPosting(context.Context, string) (*model.JobPosting, error) { return nil, nil }
func (storeStub) GetCredential(context.Context, string, string) (*model.PlatformCredential, error) {
	return nil, nil
}
func (storeStub) SaveSession(context.Context, string, string, []byte, time.Time) error { return nil }
func (storeStub) HasAttempt(context.Context, string, string, string) (bool, error) {
	return false, nil
}
func (storeStub) RecordAttempt(context.Context, model.ProposalAttempt) error { return nil }
func (storeStub) GetSearchProfile(context.Context, string) (*model.SearchProfile, error) {
	return nil, nil
}
func (storeStub) ListActiveRecipients(context.Context) ([]model.Recipient, error) { return nil, nil }
func (storeStub) GetRecipient(context.Context, string) (*model.Recipient, error)  { return nil, nil }
func (storeStub) Migrate(context.Context) error                                   { return nil }
func (storeStub) Close() error                                                    { return nil }
