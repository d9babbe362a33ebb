package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanceworks/autobid-cli/internal/browser"
	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/internal/model"
	"github.com/lanceworks/autobid-cli/internal/notify"
	"github.com/lanceworks/autobid-cli/internal/platform"
)

// fakeExtractor returns canned postings per platform.
type fakeExtractor struct {
	mu       sync.Mutex
	byName   map[string][]model.JobPosting
	errs     map[string]error
	extracts []string
}

func (f *fakeExtractor) Extract(_ context.Context, _ browser.Page, strat platform.Strategy) ([]model.JobPosting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracts = append(f.extracts, strat.Name())
	if err := f.errs[strat.Name()]; err != nil {
		return nil, err
	}
	return f.byName[strat.Name()], nil
}

// discoveryStore counts saves and filters nothing by default.
type discoveryStore struct {
	storeStub
	mu    sync.Mutex
	saved []model.JobPosting
}

func (s *discoveryStore) SavePostings(_ context.Context, postings []model.JobPosting) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, postings...)
	return len(postings), nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Dispatch(_ context.Context, message string) ([]notify.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return []notify.Result{{Recipient: model.Recipient{ID: "r1"}}}, nil
}

type fakeSeen struct {
	mu     sync.Mutex
	seen   map[string]bool
	marked []string
}

func (f *fakeSeen) FilterUnseen(_ context.Context, _ string, links []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, l := range links {
		if !f.seen[l] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSeen) MarkSeen(_ context.Context, _ string, links []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, links...)
	return nil
}

func posting(platformName, slug string) model.JobPosting {
	return model.JobPosting{
		ID:       slug,
		Link:     "https://" + platformName + "/job/" + slug,
		Platform: platformName,
		Title:    "Job " + slug,
	}
}

func TestRunCycle(t *testing.T) {
	t.Parallel()

	strategies := []platform.Strategy{platform.NewWorkana(), platform.NewFreelancer()}

	t.Run("scrapes all platforms and notifies once", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExtractor{byName: map[string][]model.JobPosting{
			"workana":    {posting("workana", "a"), posting("workana", "b")},
			"freelancer": {posting("freelancer", "c")},
		}}
		st := &discoveryStore{}
		n := &fakeNotifier{}
		b := &fakeBrowser{}

		d := NewDiscovery(b, ex, st, strategies, WithNotifier(n))
		stats, err := d.RunCycle(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 3, stats.TotalNew)
		assert.Len(t, stats.Platforms, 2)
		assert.ElementsMatch(t, []string{"workana", "freelancer"}, ex.extracts)
		assert.EqualValues(t, 2, b.pages.Load())
		assert.Equal(t, 1, stats.Notified)

		require.Len(t, n.messages, 1)
		assert.Contains(t, n.messages[0], "3 new project(s) found:")
	})

	t.Run("platform failure is isolated", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExtractor{
			byName: map[string][]model.JobPosting{
				"freelancer": {posting("freelancer", "c")},
			},
			errs: map[string]error{
				"workana": &faults.LayoutChangedError{Platform: "workana", Selector: "div.project-item"},
			},
		}
		st := &discoveryStore{}

		d := NewDiscovery(&fakeBrowser{}, ex, st, strategies)
		stats, err := d.RunCycle(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, stats.TotalNew)
		var failed, ok int
		for _, ps := range stats.Platforms {
			if ps.Err != "" {
				failed++
			} else {
				ok++
			}
		}
		assert.Equal(t, 1, failed)
		assert.Equal(t, 1, ok)
	})

	t.Run("seen cache sheds known links before the store", func(t *testing.T) {
		t.Parallel()
		known := posting("workana", "known")
		fresh := posting("workana", "fresh")
		ex := &fakeExtractor{byName: map[string][]model.JobPosting{
			"workana": {known, fresh},
		}}
		st := &discoveryStore{}
		seen := &fakeSeen{seen: map[string]bool{known.Link: true}}

		d := NewDiscovery(&fakeBrowser{}, ex, st, strategies[:1], WithSeenFilter(seen))
		stats, err := d.RunCycle(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, stats.TotalNew)
		require.Len(t, st.saved, 1)
		assert.Equal(t, fresh.Link, st.saved[0].Link)
		assert.Contains(t, seen.marked, fresh.Link)
		assert.NotContains(t, seen.marked, known.Link)
	})

	t.Run("no new postings sends no digest", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExtractor{byName: map[string][]model.JobPosting{}}
		n := &fakeNotifier{}

		d := NewDiscovery(&fakeBrowser{}, ex, &discoveryStore{}, strategies, WithNotifier(n))
		stats, err := d.RunCycle(context.Background())
		require.NoError(t, err)

		assert.Zero(t, stats.TotalNew)
		assert.Empty(t, n.messages)
	})
}
