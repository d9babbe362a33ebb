// Package submit drives the bid form: navigate to the posting's bid page,
// fill the proposal, pick the real submit control from a ranked candidate
// list, and read back any inline rejection. No platform exposes a structured
// confirmation, so the absence of error indicators after the settle wait is
// what counts as success.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lanceworks/autobid-cli/internal/browser"
	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/internal/model"
	"github.com/lanceworks/autobid-cli/internal/platform"
)

const submitMarkerSelector = `[data-autobid-submit]`

// Submitter places proposals through a rendered bid page.
type Submitter struct {
	selTimeout time.Duration
	settleWait time.Duration
}

// Option configures the Submitter.
type Option func(*Submitter)

// WithSelectorTimeout overrides how long to wait for the bid form.
func WithSelectorTimeout(d time.Duration) Option {
	return func(s *Submitter) {
		if d > 0 {
			s.selTimeout = d
		}
	}
}

// WithSettleWait overrides the pause between clicking submit and reading the
// outcome.
func WithSettleWait(d time.Duration) Option {
	return func(s *Submitter) {
		if d > 0 {
			s.settleWait = d
		}
	}
}

// NewSubmitter creates a Submitter.
func NewSubmitter(opts ...Option) *Submitter {
	s := &Submitter{
		selTimeout: 15 * time.Second,
		settleWait: 3 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit places proposalText as a bid on the posting. The page must already
// carry an authenticated session; a bounce back to the login page surfaces as
// faults.ErrSessionExpired.
func (s *Submitter) Submit(ctx context.Context, page browser.Page, strat platform.Strategy, posting *model.JobPosting, proposalText string) error {
	name := strat.Name()

	bidURL, err := strat.BidURL(posting.Link)
	if err != nil {
		return eris.Wrapf(err, "submit: derive bid url for %s", posting.Link)
	}

	if err := page.Navigate(ctx, bidURL); err != nil {
		return eris.Wrapf(err, "submit: navigate bid page on %s", name)
	}

	if err := s.checkArrival(ctx, page, strat); err != nil {
		return err
	}

	sels := strat.Selectors()

	inputSel, err := s.waitForBidInput(ctx, page, sels.BidInput)
	if err != nil {
		return eris.Wrapf(err, "submit: probe bid input on %s", name)
	}
	if inputSel == "" {
		return &faults.LayoutChangedError{Platform: name, Selector: firstOrEmpty(sels.BidInput)}
	}
	if err := page.Fill(ctx, inputSel, proposalText); err != nil {
		return eris.Wrapf(err, "submit: fill proposal on %s", name)
	}

	marked, err := s.markSubmitControl(ctx, page, sels.BidSubmit)
	if err != nil {
		return eris.Wrapf(err, "submit: locate submit control on %s", name)
	}
	if !marked {
		return &faults.LayoutChangedError{Platform: name, Selector: firstOrEmpty(sels.BidSubmit.Candidates)}
	}
	if err := page.Click(ctx, submitMarkerSelector); err != nil {
		return eris.Wrapf(err, "submit: click submit on %s", name)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.settleWait):
	}

	if errSel, probeErr := firstExisting(ctx, page, sels.BidError); probeErr == nil && errSel != "" {
		msg, _ := page.Text(ctx, errSel)
		if msg == "" {
			msg = "platform showed an error indicator"
		}
		return &faults.SubmissionRejectedError{Platform: name, Message: msg}
	}

	// No rejection indicator within the settle window. There is no positive
	// confirmation signal to read, so this is the success path.
	zap.L().Debug("no error indicators after submit, treating as sent",
		zap.String("platform", name),
		zap.String("posting_id", posting.ID),
	)
	return nil
}

// checkArrival verifies the navigation actually landed on the bid page.
func (s *Submitter) checkArrival(ctx context.Context, page browser.Page, strat platform.Strategy) error {
	loc, err := page.Location(ctx)
	if err != nil {
		return eris.Wrap(err, "submit: read location")
	}
	if strings.Contains(strings.ToLower(loc), "login") || strings.HasPrefix(loc, strat.LoginURL()) {
		return faults.ErrSessionExpired
	}

	sel, err := firstExisting(ctx, page, strat.Selectors().NotFound)
	if err != nil {
		return eris.Wrap(err, "submit: probe not-found markers")
	}
	if sel != "" {
		return faults.ErrPostingUnavailable
	}
	return nil
}

func (s *Submitter) waitForBidInput(ctx context.Context, page browser.Page, selectors []string) (string, error) {
	deadline := time.Now().Add(s.selTimeout)
	for {
		sel, err := firstExisting(ctx, page, selectors)
		if err != nil {
			return "", err
		}
		if sel != "" {
			return sel, nil
		}
		if time.Now().After(deadline) {
			return "", nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// markSubmitControl evaluates a script that walks the ranked candidates in
// order, skips elements whose visible text matches an exclude substring, and
// tags the first survivor so Click can target it directly. Exclusion is what
// keeps a "Search" button next to the bid form from being pressed.
func (s *Submitter) markSubmitControl(ctx context.Context, page browser.Page, ranked platform.RankedSelectors) (bool, error) {
	cands, err := json.Marshal(ranked.Candidates)
	if err != nil {
		return false, err
	}
	excl, err := json.Marshal(lowered(ranked.Exclude))
	if err != nil {
		return false, err
	}

	script := fmt.Sprintf(`(() => {
	const cands = %s;
	const excl = %s;
	document.querySelectorAll('[data-autobid-submit]').forEach(el => el.removeAttribute('data-autobid-submit'));
	for (const sel of cands) {
		let nodes;
		try { nodes = document.querySelectorAll(sel); } catch (e) { continue; }
		for (const el of nodes) {
			const label = ((el.innerText || el.value || '') + ' ' +
				(el.getAttribute('aria-label') || '')).toLowerCase();
			if (excl.some(x => label.includes(x))) continue;
			el.setAttribute('data-autobid-submit', '1');
			return true;
		}
	}
	return false;
})()`, cands, excl)

	var marked bool
	if err := page.Evaluate(ctx, script, &marked); err != nil {
		return false, err
	}
	return marked, nil
}

func lowered(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func firstExisting(ctx context.Context, page browser.Page, selectors []string) (string, error) {
	for _, sel := range selectors {
		ok, err := page.Exists(ctx, sel)
		if err != nil {
			return "", err
		}
		if ok {
			return sel, nil
		}
	}
	return "", nil
}

func firstOrEmpty(selectors []string) string {
	if len(selectors) == 0 {
		return ""
	}
	return selectors[0]
}
