// Package pipeline wires the stages together: discovery runs extraction,
// deduplication, persistence and notification for every enabled platform;
// submission takes one stored posting through generation and bid placement.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lanceworks/autobid-cli/internal/browser"
	"github.com/lanceworks/autobid-cli/internal/model"
	"github.com/lanceworks/autobid-cli/internal/notify"
	"github.com/lanceworks/autobid-cli/internal/platform"
	"github.com/lanceworks/autobid-cli/internal/store"
)

// Extractor pulls postings out of a platform's rendered listing page.
// *extractor.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, page browser.Page, strat platform.Strategy) ([]model.JobPosting, error)
}

// SeenFilter is the optional pre-database dedup layer. *store.SeenCache
// implements it; a nil filter means every posting goes to the database check.
type SeenFilter interface {
	FilterUnseen(ctx context.Context, platform string, links []string) ([]string, error)
	MarkSeen(ctx context.Context, platform string, links []string) error
}

// Notifier sends the per-cycle digest. *notify.Dispatcher implements it.
type Notifier interface {
	Dispatch(ctx context.Context, message string) ([]notify.Result, error)
}

// PlatformStats summarizes one platform's part of a cycle.
type PlatformStats struct {
	Platform  string        `json:"platform"`
	Extracted int           `json:"extracted"`
	New       int           `json:"new"`
	Saved     int           `json:"saved"`
	Err       string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// CycleStats summarizes one full discovery cycle.
type CycleStats struct {
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Platforms []PlatformStats `json:"platforms"`
	TotalNew  int             `json:"total_new"`
	Notified  int             `json:"notified"`
}

// Discovery runs scrape cycles across the enabled platforms.
type Discovery struct {
	browser    browser.Browser
	extractor  Extractor
	store      store.Store
	strategies []platform.Strategy
	seen       SeenFilter // optional
	notifier   Notifier   // optional
	reviewURL  string
	maxConc    int
}

// DiscoveryOption configures Discovery.
type DiscoveryOption func(*Discovery)

// WithSeenFilter enables the pre-database seen-link cache.
func WithSeenFilter(f SeenFilter) DiscoveryOption {
	return func(d *Discovery) { d.seen = f }
}

// WithNotifier enables the end-of-cycle digest.
func WithNotifier(n Notifier) DiscoveryOption {
	return func(d *Discovery) { d.notifier = n }
}

// WithReviewURL sets the base URL digest entries deep-link to for reviewing
// and submitting a proposal on a stored posting.
func WithReviewURL(u string) DiscoveryOption {
	return func(d *Discovery) { d.reviewURL = u }
}

// WithMaxConcurrent bounds how many platforms are scraped in parallel.
func WithMaxConcurrent(n int) DiscoveryOption {
	return func(d *Discovery) {
		if n > 0 {
			d.maxConc = n
		}
	}
}

// NewDiscovery creates the discovery pipeline over the given strategies.
func NewDiscovery(b browser.Browser, ex Extractor, st store.Store, strategies []platform.Strategy, opts ...DiscoveryOption) *Discovery {
	d := &Discovery{
		browser:    b,
		extractor:  ex,
		store:      st,
		strategies: strategies,
		maxConc:    2,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// RunCycle scrapes every enabled platform, persists the postings that survive
// dedup, and dispatches one digest for the cycle's new postings. A platform
// failure is recorded in the stats and does not abort the other platforms.
func (d *Discovery) RunCycle(ctx context.Context) (*CycleStats, error) {
	start := time.Now()
	stats := &CycleStats{StartedAt: start.UTC()}

	var mu sync.Mutex
	var fresh []model.JobPosting

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxConc)

	for _, strat := range d.strategies {
		g.Go(func() error {
			ps := d.runPlatform(gctx, strat)
			mu.Lock()
			stats.Platforms = append(stats.Platforms, ps.stats)
			stats.TotalNew += ps.stats.Saved
			fresh = append(fresh, ps.saved...)
			mu.Unlock()
			// Per-platform errors live in the stats, never abort siblings.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, eris.Wrap(err, "pipeline: discovery cycle")
	}

	if d.notifier != nil && len(fresh) > 0 {
		results, err := d.notifier.Dispatch(ctx, notify.BuildDigest(fresh, d.reviewURL))
		if err != nil {
			zap.L().Error("digest dispatch failed", zap.Error(err))
		} else {
			for _, r := range results {
				if !r.Skipped && r.Err == nil {
					stats.Notified++
				}
			}
		}
	}

	stats.Duration = time.Since(start)
	zap.L().Info("discovery cycle complete",
		zap.Int("platforms", len(stats.Platforms)),
		zap.Int("total_new", stats.TotalNew),
		zap.Int("notified", stats.Notified),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

type platformResult struct {
	stats PlatformStats
	saved []model.JobPosting
}

func (d *Discovery) runPlatform(ctx context.Context, strat platform.Strategy) platformResult {
	name := strat.Name()
	start := time.Now()
	res := platformResult{stats: PlatformStats{Platform: name}}

	fail := func(err error) platformResult {
		res.stats.Err = err.Error()
		res.stats.Duration = time.Since(start)
		zap.L().Error("platform scrape failed", zap.String("platform", name), zap.Error(err))
		return res
	}

	page, err := d.browser.NewPage(ctx)
	if err != nil {
		return fail(eris.Wrapf(err, "pipeline: open page for %s", name))
	}
	defer page.Close() //nolint:errcheck

	postings, err := d.extractor.Extract(ctx, page, strat)
	if err != nil {
		return fail(err)
	}
	res.stats.Extracted = len(postings)

	postings = d.shedSeen(ctx, name, postings)

	newPostings, err := d.store.FilterNewPostings(ctx, name, postings)
	if err != nil {
		return fail(eris.Wrapf(err, "pipeline: filter postings for %s", name))
	}
	res.stats.New = len(newPostings)

	saved, err := d.store.SavePostings(ctx, newPostings)
	if err != nil {
		return fail(eris.Wrapf(err, "pipeline: save postings for %s", name))
	}
	res.stats.Saved = saved
	res.saved = newPostings

	d.markSeen(ctx, name, postings)

	res.stats.Duration = time.Since(start)
	return res
}

// shedSeen drops postings whose links are already in the seen cache. Any
// cache failure degrades to "nothing seen"; the database check still runs.
func (d *Discovery) shedSeen(ctx context.Context, name string, postings []model.JobPosting) []model.JobPosting {
	if d.seen == nil || len(postings) == 0 {
		return postings
	}

	links := make([]string, len(postings))
	for i, p := range postings {
		links[i] = p.Link
	}
	unseen, err := d.seen.FilterUnseen(ctx, name, links)
	if err != nil {
		zap.L().Warn("seen cache unavailable, checking database for all links",
			zap.String("platform", name), zap.Error(err))
		return postings
	}

	keep := make(map[string]struct{}, len(unseen))
	for _, l := range unseen {
		keep[l] = struct{}{}
	}
	out := postings[:0]
	for _, p := range postings {
		if _, ok := keep[p.Link]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (d *Discovery) markSeen(ctx context.Context, name string, postings []model.JobPosting) {
	if d.seen == nil || len(postings) == 0 {
		return
	}
	links := make([]string, len(postings))
	for i, p := range postings {
		links[i] = p.Link
	}
	if err := d.seen.MarkSeen(ctx, name, links); err != nil {
		zap.L().Warn("seen cache mark failed", zap.String("platform", name), zap.Error(err))
	}
}
