// Package browser defines the rendered-page capability the automation core
// drives. Components depend on the Page interface only; selector strings and
// navigation targets come from platform strategies, not from this package.
package browser

import (
	"context"
	"time"
)

// Cookie is one browser cookie. A session blob is the JSON encoding of the
// full cookie set for one (user, platform).
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	HTTPOnly bool      `json:"http_only"`
	Secure   bool      `json:"secure"`
}

// Page is a single rendered browser tab. One Page is owned exclusively by
// one operation for its duration; pages are never shared across concurrent
// operations. Callers close pages in explicit cleanup paths.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Exists(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	ScrollBy(ctx context.Context, deltaY int) error
	Evaluate(ctx context.Context, expr string, out any) error
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Browser creates pages. The production implementation drives a headless
// Chrome; tests substitute fakes.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}
