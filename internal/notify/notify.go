// Package notify fans a discovery digest out to the active recipients. Each
// recipient is isolated: one failed or deactivated recipient never blocks the
// rest, and eligibility is rechecked at send time so a recipient deactivated
// mid-cycle is skipped rather than messaged.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lanceworks/autobid-cli/internal/model"
	"github.com/lanceworks/autobid-cli/internal/store"
)

// Channel delivers one message to one recipient handle.
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient model.Recipient, message string) error
}

// Result records the outcome for one recipient.
type Result struct {
	Recipient model.Recipient
	Skipped   bool // deactivated between listing and send, or channel unknown
	Err       error
}

// Dispatcher sends messages to all active recipients through their channels.
type Dispatcher struct {
	store    store.Store
	channels map[string]Channel
	limiter  *rate.Limiter
}

// NewDispatcher creates a dispatcher. ratePerMinute bounds outbound sends
// across all recipients; zero disables throttling.
func NewDispatcher(st store.Store, ratePerMinute int, channels ...Channel) *Dispatcher {
	byName := make(map[string]Channel, len(channels))
	for _, c := range channels {
		byName[c.Name()] = c
	}

	var limiter *rate.Limiter
	if ratePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), 1)
	}

	return &Dispatcher{store: st, channels: byName, limiter: limiter}
}

// Dispatch sends message to every active recipient. It always returns one
// Result per recipient listed at the start of the call; the error return is
// reserved for being unable to list recipients at all.
func (d *Dispatcher) Dispatch(ctx context.Context, message string) ([]Result, error) {
	recipients, err := d.store.ListActiveRecipients(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "notify: list recipients")
	}

	results := make([]Result, 0, len(recipients))
	for _, r := range recipients {
		results = append(results, d.sendOne(ctx, r, message))
	}

	sent, skipped, failed := 0, 0, 0
	for _, res := range results {
		switch {
		case res.Skipped:
			skipped++
		case res.Err != nil:
			failed++
		default:
			sent++
		}
	}
	zap.L().Info("notification dispatch complete",
		zap.Int("sent", sent),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return results, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, r model.Recipient, message string) Result {
	res := Result{Recipient: r}

	// Recheck eligibility right before sending.
	current, err := d.store.GetRecipient(ctx, r.ID)
	if err != nil {
		res.Err = eris.Wrapf(err, "notify: recheck recipient %s", r.ID)
		return res
	}
	if current == nil || !current.Active {
		res.Skipped = true
		zap.L().Debug("recipient deactivated, skipping", zap.String("recipient_id", r.ID))
		return res
	}

	channel, ok := d.channels[current.Channel]
	if !ok {
		res.Skipped = true
		zap.L().Warn("no channel registered for recipient",
			zap.String("recipient_id", r.ID),
			zap.String("channel", current.Channel),
		)
		return res
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			res.Err = eris.Wrap(err, "notify: rate limit wait")
			return res
		}
	}

	if err := channel.Send(ctx, *current, message); err != nil {
		res.Err = eris.Wrapf(err, "notify: send to %s via %s", r.ID, current.Channel)
		zap.L().Warn("notification send failed",
			zap.String("recipient_id", r.ID),
			zap.String("channel", current.Channel),
			zap.Error(err),
		)
		return res
	}

	return res
}

const (
	// maxDigestItems caps how many postings one digest message lists.
	maxDigestItems = 10
	// maxDigestDescription caps the per-posting description excerpt.
	maxDigestDescription = 160
)

// BuildDigest renders the fixed discovery message: a count header, then per
// posting the platform, title, price, a description excerpt and the link.
// Postings that were persisted carry a deep link into the proposal-review
// flow when reviewURL is set, or their bare ID otherwise, so a submission
// can be started from the message alone.
func BuildDigest(postings []model.JobPosting, reviewURL string) string {
	if len(postings) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d new project(s) found:\n", len(postings))

	shown := postings
	if len(shown) > maxDigestItems {
		shown = shown[:maxDigestItems]
	}
	for _, p := range shown {
		fmt.Fprintf(&b, "\n[%s] %s\n", p.Platform, p.Title)
		if p.PriceInfo != "" {
			fmt.Fprintf(&b, "%s\n", p.PriceInfo)
		}
		if excerpt := truncate(p.Description, maxDigestDescription); excerpt != "" {
			fmt.Fprintf(&b, "%s\n", excerpt)
		}
		fmt.Fprintf(&b, "%s\n", p.Link)
		switch {
		case p.ID != "" && reviewURL != "":
			fmt.Fprintf(&b, "review: %s/%s\n", strings.TrimRight(reviewURL, "/"), p.ID)
		case p.ID != "":
			fmt.Fprintf(&b, "ref: %s\n", p.ID)
		}
	}
	if len(postings) > maxDigestItems {
		fmt.Fprintf(&b, "\n...and %d more.\n", len(postings)-maxDigestItems)
	}
	return b.String()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}
