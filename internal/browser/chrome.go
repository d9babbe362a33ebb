package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// ChromeConfig tunes the headless Chrome allocator.
type ChromeConfig struct {
	Headless  bool
	UserAgent string
}

// Chrome implements Browser on top of chromedp. One Chrome owns one
// allocator; each NewPage call opens a fresh tab with its own context,
// so pages carry no state from each other beyond the shared profile.
type Chrome struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChrome starts a Chrome allocator. The browser process itself launches
// lazily on the first page.
func NewChrome(cfg ChromeConfig) *Chrome {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Chrome{allocCtx: allocCtx, allocCancel: cancel}
}

// NewPage opens a new tab.
func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(c.allocCtx)
	// Force the tab to actually open so failures surface here, not on the
	// first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, eris.Wrap(err, "browser: open tab")
	}
	return &chromePage{tabCtx: tabCtx, cancel: cancel}, nil
}

// Close shuts down the allocator and every page opened from it.
func (c *Chrome) Close() error {
	c.allocCancel()
	return nil
}

type chromePage struct {
	tabCtx context.Context
	cancel context.CancelFunc
}

// run executes actions against the tab, honoring the caller's context for
// cooperative cancellation between steps.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(p.tabCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", eris.Wrap(err, "browser: read location")
	}
	return loc, nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return eris.Wrapf(err, "browser: wait for %q", selector)
	}
	return nil
}

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := p.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, eris.Wrapf(err, "browser: probe %q", selector)
	}
	return found, nil
}

func (p *chromePage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	expr := fmt.Sprintf(`(() => { const el = document.querySelector(%q); return el ? el.innerText.trim() : ""; })()`, selector)
	if err := p.run(ctx, chromedp.Evaluate(expr, &text)); err != nil {
		return "", eris.Wrapf(err, "browser: read text of %q", selector)
	}
	return text, nil
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	err := p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return eris.Wrapf(err, "browser: fill %q", selector)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return eris.Wrapf(err, "browser: click %q", selector)
	}
	return nil
}

func (p *chromePage) ScrollBy(ctx context.Context, deltaY int) error {
	expr := fmt.Sprintf(`window.scrollBy(0, %d)`, deltaY)
	if err := p.run(ctx, chromedp.Evaluate(expr, nil)); err != nil {
		return eris.Wrap(err, "browser: scroll")
	}
	return nil
}

func (p *chromePage) Evaluate(ctx context.Context, expr string, out any) error {
	if err := p.run(ctx, chromedp.Evaluate(expr, out)); err != nil {
		return eris.Wrap(err, "browser: evaluate")
	}
	return nil
}

func (p *chromePage) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]Cookie, 0, len(raw))
		for _, c := range raw {
			ck := Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
			}
			if c.Expires > 0 {
				ck.Expires = time.Unix(int64(c.Expires), 0)
			}
			cookies = append(cookies, ck)
		}
		return nil
	}))
	if err != nil {
		return nil, eris.Wrap(err, "browser: read cookies")
	}
	return cookies, nil
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []Cookie) error {
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if !c.Expires.IsZero() {
				exp := cdp.TimeSinceEpoch(c.Expires)
				param = param.WithExpires(&exp)
			}
			if err := param.Do(ctx); err != nil {
				return eris.Wrapf(err, "set cookie %s", c.Name)
			}
		}
		return nil
	}))
	if err != nil {
		return eris.Wrap(err, "browser: write cookies")
	}
	return nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, eris.Wrap(err, "browser: screenshot")
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
