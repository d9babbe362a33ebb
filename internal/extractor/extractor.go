// Package extractor drives a rendered listing page and pulls structured
// postings out of the DOM.
package extractor

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lanceworks/autobid-cli/internal/browser"
	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/internal/langdetect"
	"github.com/lanceworks/autobid-cli/internal/model"
	"github.com/lanceworks/autobid-cli/internal/platform"
)

// rawPosting mirrors the objects returned by a strategy's extract script.
type rawPosting struct {
	Link            string   `json:"link"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	PriceInfo       string   `json:"price_info"`
	Skills          []string `json:"skills"`
	ClientName      string   `json:"client_name"`
	ClientCountry   string   `json:"client_country"`
	ClientRating    float64  `json:"client_rating"`
	PaymentVerified bool     `json:"payment_verified"`
	Featured        bool     `json:"featured"`
}

// Option configures the extractor.
type Option func(*Extractor)

// WithSelectorTimeout sets how long to wait for the item selector before
// declaring the platform layout changed.
func WithSelectorTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.selectorTimeout = d }
}

// WithDetector replaces the language detector (used by tests).
func WithDetector(fn func(string) model.Language) Option {
	return func(e *Extractor) { e.detect = fn }
}

// WithScrollDelay overrides the scroll pause bounds (used by tests to avoid
// real sleeps).
func WithScrollDelay(min, max time.Duration) Option {
	return func(e *Extractor) { e.pauseMin, e.pauseMax = min, max }
}

// Extractor extracts postings from a platform's listing page.
type Extractor struct {
	selectorTimeout time.Duration
	pauseMin        time.Duration
	pauseMax        time.Duration
	detect          func(string) model.Language
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		selectorTimeout: 15 * time.Second,
		pauseMin:        500 * time.Millisecond,
		pauseMax:        2 * time.Second,
		detect:          langdetect.Detect,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract renders the listing page, browses it the way a human would to
// trigger lazy content, and returns one posting per parseable listing node.
// A node that fails validation is dropped, not fatal to the batch. A missing
// item selector means the platform layout changed and fails the whole call.
func (e *Extractor) Extract(ctx context.Context, page browser.Page, strat platform.Strategy) ([]model.JobPosting, error) {
	if err := page.Navigate(ctx, strat.ListingURL()); err != nil {
		return nil, eris.Wrapf(err, "extractor: open %s listing", strat.Name())
	}

	if err := page.WaitVisible(ctx, strat.ItemSelector(), e.selectorTimeout); err != nil {
		return nil, &faults.LayoutChangedError{Platform: strat.Name(), Selector: strat.ItemSelector()}
	}

	if err := e.humanScroll(ctx, page); err != nil {
		return nil, err
	}

	e.expandDescriptions(ctx, page, strat)

	var raw []rawPosting
	if err := page.Evaluate(ctx, strat.ExtractScript(), &raw); err != nil {
		return nil, eris.Wrapf(err, "extractor: run %s extract script", strat.Name())
	}

	now := time.Now().UTC()
	postings := make([]model.JobPosting, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		p := model.JobPosting{
			ID:              uuid.NewString(),
			Link:            r.Link,
			Platform:        strat.Name(),
			Title:           r.Title,
			Description:     r.Description,
			PriceInfo:       r.PriceInfo,
			Skills:          r.Skills,
			ClientName:      r.ClientName,
			ClientCountry:   r.ClientCountry,
			ClientRating:    r.ClientRating,
			PaymentVerified: r.PaymentVerified,
			Featured:        r.Featured,
			Language:        e.detect(r.Title + " " + r.Description),
			FirstSeenAt:     now,
		}
		if err := p.Validate(); err != nil {
			dropped++
			zap.L().Debug("extractor: dropping unparseable node",
				zap.String("platform", strat.Name()),
				zap.String("link", r.Link),
				zap.Error(err),
			)
			continue
		}
		postings = append(postings, p)
	}

	zap.L().Info("extractor: listing extracted",
		zap.String("platform", strat.Name()),
		zap.Int("postings", len(postings)),
		zap.Int("dropped", dropped),
	)
	return postings, nil
}

// humanScroll performs a bounded randomized scroll sequence: 3-5 iterations,
// each scrolling 100-800px down then slightly back up, pausing between moves.
func (e *Extractor) humanScroll(ctx context.Context, page browser.Page) error {
	iterations := 3 + rand.IntN(3)
	for i := 0; i < iterations; i++ {
		down := 100 + rand.IntN(701)
		if err := page.ScrollBy(ctx, down); err != nil {
			return err
		}
		if err := e.pause(ctx); err != nil {
			return err
		}
		up := 20 + rand.IntN(80)
		if err := page.ScrollBy(ctx, -up); err != nil {
			return err
		}
		if err := e.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) pause(ctx context.Context) error {
	span := e.pauseMax - e.pauseMin
	d := e.pauseMin
	if span > 0 {
		d += time.Duration(rand.Int64N(int64(span)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// expandDescriptions clicks every "view more" affordance so truncated
// descriptions are present before extraction. Failures here are not fatal;
// the card still yields its truncated text.
func (e *Extractor) expandDescriptions(ctx context.Context, page browser.Page, strat platform.Strategy) {
	for _, sel := range strat.Selectors().ViewMore {
		script := `(() => { const els = document.querySelectorAll('` + sel + `'); els.forEach(el => el.click()); return els.length; })()`
		var clicked int
		if err := page.Evaluate(ctx, script, &clicked); err != nil {
			zap.L().Debug("extractor: view-more expansion failed",
				zap.String("platform", strat.Name()),
				zap.String("selector", sel),
				zap.Error(err),
			)
			continue
		}
		if clicked > 0 {
			zap.L().Debug("extractor: expanded descriptions",
				zap.String("platform", strat.Name()),
				zap.Int("count", clicked),
			)
		}
	}
}
