package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanceworks/autobid-cli/internal/browser"
	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/internal/model"
	"github.com/lanceworks/autobid-cli/internal/platform"
	"github.com/lanceworks/autobid-cli/internal/proposal"
	"github.com/lanceworks/autobid-cli/internal/submit"
)

// submissionStore scripts the posting, attempt and profile surface.
type submissionStore struct {
	storeStub
	posting     *model.JobPosting
	hasAttempt  bool
	profile     *model.SearchProfile
	recorded    []model.ProposalAttempt
	recordErr   error
	hasAttempts int
}

func (s *submissionStore) GetPosting(context.Context, string) (*model.JobPosting, error) {
	return s.posting, nil
}

// HasAttempt mirrors the stores: any recorded row matches, whatever its
// outcome.
func (s *submissionStore) HasAttempt(context.Context, string, string, string) (bool, error) {
	s.hasAttempts++
	return s.hasAttempt || len(s.recorded) > 0, nil
}

func (s *submissionStore) GetSearchProfile(context.Context, string) (*model.SearchProfile, error) {
	return s.profile, nil
}

func (s *submissionStore) RecordAttempt(_ context.Context, attempt model.ProposalAttempt) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = append(s.recorded, attempt)
	return nil
}

type fakeSessions struct {
	ensured     int
	ensureErr   error
	invalidated []string
}

func (f *fakeSessions) EnsureValid(context.Context, browser.Page, string, platform.Strategy) error {
	f.ensured++
	return f.ensureErr
}

func (f *fakeSessions) Invalidate(userID, platformName string) {
	f.invalidated = append(f.invalidated, userID+"|"+platformName)
}

type fakeGenerator struct {
	text string
	err  error
	got  proposal.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req proposal.Request) (string, error) {
	f.got = req
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// bidPage satisfies the happy submit path for the workana strategy.
type bidPage struct {
	nullPage
	filled map[string]string
}

func (p *bidPage) Location(context.Context) (string, error) {
	return "https://www.workana.com/messages/bid/tienda", nil
}
func (p *bidPage) Exists(_ context.Context, sel string) (bool, error) {
	return sel == "textarea#content", nil
}
func (p *bidPage) Fill(_ context.Context, sel, value string) error {
	if p.filled == nil {
		p.filled = make(map[string]string)
	}
	p.filled[sel] = value
	return nil
}
func (p *bidPage) Evaluate(_ context.Context, _ string, out any) error {
	if b, ok := out.(*bool); ok {
		*b = true
	}
	return nil
}

type bidBrowser struct {
	page browser.Page
}

func (b *bidBrowser) NewPage(context.Context) (browser.Page, error) { return b.page, nil }
func (b *bidBrowser) Close() error                                  { return nil }

func storedPosting() *model.JobPosting {
	return &model.JobPosting{
		ID:       "p1",
		Link:     "https://www.workana.com/job/tienda",
		Platform: "workana",
		Title:    "Tienda online",
		Language: model.LangSpanish,
	}
}

func newTestSubmission(st *submissionStore, sessions *fakeSessions, gen *fakeGenerator, page browser.Page, opts ...SubmissionOption) *Submission {
	sub := submit.NewSubmitter(submit.WithSettleWait(1), submit.WithSelectorTimeout(1))
	return NewSubmission(&bidBrowser{page: page}, st, sessions, gen, sub, platform.DefaultRegistry(), opts...)
}

func TestSubmissionSubmit(t *testing.T) {
	t.Parallel()

	t.Run("happy path records a sent attempt", func(t *testing.T) {
		t.Parallel()
		st := &submissionStore{
			posting: storedPosting(),
			profile: &model.SearchProfile{UserID: "u1", Profile: "PHP dev", Directives: "be brief"},
		}
		sessions := &fakeSessions{}
		gen := &fakeGenerator{text: "Hola, puedo ayudar con la tienda."}
		page := &bidPage{}

		s := newTestSubmission(st, sessions, gen, page)
		attempt, err := s.Submit(context.Background(), "u1", "p1")
		require.NoError(t, err)
		require.NotNil(t, attempt)

		assert.Equal(t, model.OutcomeSent, attempt.Outcome)
		assert.Equal(t, "Hola, puedo ayudar con la tienda.", attempt.BidText)
		assert.Equal(t, 1, sessions.ensured)
		require.Len(t, st.recorded, 1)

		// Stored profile flows into the generation request.
		assert.Equal(t, "PHP dev", gen.got.Profile)
		assert.Equal(t, "be brief", gen.got.Directives)
		assert.Equal(t, model.LangSpanish, gen.got.Language)
		assert.Equal(t, "Hola, puedo ayudar con la tienda.", page.filled["textarea#content"])
	})

	t.Run("duplicate is refused before any browser work", func(t *testing.T) {
		t.Parallel()
		st := &submissionStore{posting: storedPosting(), hasAttempt: true}
		sessions := &fakeSessions{}

		s := newTestSubmission(st, sessions, &fakeGenerator{text: "x"}, &bidPage{})
		_, err := s.Submit(context.Background(), "u1", "p1")
		assert.ErrorIs(t, err, faults.ErrDuplicateAttempt)
		assert.Zero(t, sessions.ensured)
	})

	t.Run("unknown posting", func(t *testing.T) {
		t.Parallel()
		s := newTestSubmission(&submissionStore{}, &fakeSessions{}, &fakeGenerator{text: "x"}, &bidPage{})
		_, err := s.Submit(context.Background(), "u1", "missing")
		assert.Error(t, err)
	})

	t.Run("generation failure uses fallback when enabled", func(t *testing.T) {
		t.Parallel()
		st := &submissionStore{posting: storedPosting()}
		gen := &fakeGenerator{err: &faults.GenerationServiceError{StatusCode: 500, JobTitle: "Tienda online"}}

		s := newTestSubmission(st, &fakeSessions{}, gen, &bidPage{}, WithFallback(true))
		attempt, err := s.Submit(context.Background(), "u1", "p1")
		require.NoError(t, err)

		// The deterministic Spanish template stands in for the LLM output.
		assert.Contains(t, attempt.BidText, "Tienda online")
		assert.Contains(t, attempt.BidText, "Hola")
	})

	t.Run("generation failure without fallback aborts before the browser", func(t *testing.T) {
		t.Parallel()
		st := &submissionStore{posting: storedPosting()}
		gen := &fakeGenerator{err: &faults.GenerationServiceError{StatusCode: 500}}
		sessions := &fakeSessions{}

		s := newTestSubmission(st, sessions, gen, &bidPage{}, WithFallback(false))
		_, err := s.Submit(context.Background(), "u1", "p1")
		assert.True(t, faults.IsGenerationFailure(err))
		assert.Zero(t, sessions.ensured)
		assert.Empty(t, st.recorded)
	})

	t.Run("session expiry during submit invalidates the cached session", func(t *testing.T) {
		t.Parallel()
		st := &submissionStore{posting: storedPosting()}
		sessions := &fakeSessions{}

		// Page that bounces to the login screen.
		page := &loginBouncePage{}
		s := newTestSubmission(st, sessions, &fakeGenerator{text: "x"}, page)

		_, err := s.Submit(context.Background(), "u1", "p1")
		assert.ErrorIs(t, err, faults.ErrSessionExpired)
		assert.Equal(t, []string{"u1|workana"}, sessions.invalidated)
		assert.Empty(t, st.recorded)
	})

	t.Run("platform rejection records a failed attempt and blocks retry", func(t *testing.T) {
		t.Parallel()
		st := &submissionStore{posting: storedPosting()}
		sessions := &fakeSessions{}

		s := newTestSubmission(st, sessions, &fakeGenerator{text: "x"}, &rejectedPage{})
		_, err := s.Submit(context.Background(), "u1", "p1")
		require.True(t, faults.IsSubmissionRejected(err))
		require.Len(t, st.recorded, 1)
		assert.Equal(t, model.OutcomeFailed, st.recorded[0].Outcome)

		// The failed row occupies the attempt key, so the retry is refused
		// before any browser work.
		_, err = s.Submit(context.Background(), "u1", "p1")
		assert.ErrorIs(t, err, faults.ErrDuplicateAttempt)
		assert.Equal(t, 1, sessions.ensured)
	})

	t.Run("concurrent duplicate at record time", func(t *testing.T) {
		t.Parallel()
		st := &submissionStore{posting: storedPosting(), recordErr: faults.ErrDuplicateAttempt}

		s := newTestSubmission(st, &fakeSessions{}, &fakeGenerator{text: "x"}, &bidPage{})
		_, err := s.Submit(context.Background(), "u1", "p1")
		assert.ErrorIs(t, err, faults.ErrDuplicateAttempt)
	})
}

type loginBouncePage struct {
	nullPage
}

func (loginBouncePage) Location(context.Context) (string, error) {
	return "https://www.workana.com/login?next=bid", nil
}

// rejectedPage completes the bid form but shows an inline error afterwards.
type rejectedPage struct {
	bidPage
}

func (p *rejectedPage) Exists(_ context.Context, sel string) (bool, error) {
	return sel == "textarea#content" || sel == ".alert-danger", nil
}

func (p *rejectedPage) Text(context.Context, string) (string, error) {
	return "Ya enviaste una propuesta para este proyecto.", nil
}
