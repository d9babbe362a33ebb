package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lanceworks/autobid-cli/internal/browser"
	"github.com/lanceworks/autobid-cli/internal/model"
)

// storeStub provides no-op implementations so pipeline fakes only override
// the methods a scenario exercises.
type storeStub struct{}

func (storeStub) FilterNewPostings(_ context.Context, _ string, postings []model.JobPosting) ([]model.JobPosting, error) {
	return postings, nil
}
func (storeStub) SavePostings(_ context.Context, postings []model.JobPosting) (int, error) {
	return len(postings), nil
}
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

// nullPage satisfies browser.Page for flows where the page is only passed
// through to fakes.
type nullPage struct{}

func (nullPage) Navigate(context.Context, string) error                   { return nil }
func (nullPage) Location(context.Context) (string, error)                 { return "", nil }
func (nullPage) WaitVisible(context.Context, string, time.Duration) error { return nil }
func (nullPage) Exists(context.Context, string) (bool, error)             { return false, nil }
func (nullPage) Text(context.Context, string) (string, error)             { return "", nil }
func (nullPage) Fill(context.Context, string, string) error               { return nil }
func (nullPage) Click(context.Context, string) error                      { return nil }
func (nullPage) ScrollBy(context.Context, int) error                      { return nil }
func (nullPage) Evaluate(context.Context, string, any) error              { return nil }
func (nullPage) Cookies(context.Context) ([]browser.Cookie, error)        { return nil, nil }
func (nullPage) SetCookies(context.Context, []browser.Cookie) error       { return nil }
func (nullPage) Screenshot(context.Context) ([]byte, error)               { return nil, nil }
func (nullPage) Close() error                                             { return nil }

// fakeBrowser hands out null pages and counts them.
type fakeBrowser struct {
	pages atomic.Int32
}

func (b *fakeBrowser) NewPage(context.Context) (browser.Page, error) {
	b.pages.Add(1)
	return nullPage{}, nil
}
func (b *fakeBrowser) Close() error { return nil }
