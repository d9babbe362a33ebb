// Package session keeps platform logins alive. A persisted cookie blob is
// injected and validated against an authenticated-only page before any
// credential login is attempted; a CAPTCHA on the login page fails the
// operation immediately and is never retried.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lanceworks/autobid-cli/internal/browser"
	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/internal/model"
	"github.com/lanceworks/autobid-cli/internal/platform"
	"github.com/lanceworks/autobid-cli/internal/resilience"
	"github.com/lanceworks/autobid-cli/internal/store"
)

const defaultSessionTTL = 24 * time.Hour

// Manager establishes and refreshes authenticated sessions. It is safe for
// concurrent use; validation results are cached in-process so repeated calls
// within one run skip the live probe.
type Manager struct {
	store         store.Store
	ttl           time.Duration
	retry         resilience.RetryConfig
	selTimeout    time.Duration
	screenshotDir string

	mu        sync.Mutex
	validated map[string]time.Time // "userID|platform" -> session expiry
}

// Option configures the Manager.
type Option func(*Manager)

// WithTTL overrides how long a refreshed session is considered valid.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithRetry overrides the login retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(m *Manager) {
		m.retry = cfg
	}
}

// WithSelectorTimeout overrides how long to wait for login-flow elements.
func WithSelectorTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.selTimeout = d
		}
	}
}

// WithScreenshotDir enables on-failure screenshots written to dir.
func WithScreenshotDir(dir string) Option {
	return func(m *Manager) {
		m.screenshotDir = dir
	}
}

// NewManager creates a session manager backed by st.
func NewManager(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:      st,
		ttl:        defaultSessionTTL,
		retry:      resilience.DefaultRetryConfig(),
		selTimeout: 15 * time.Second,
		validated:  make(map[string]time.Time),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// EnsureValid leaves page authenticated for the user on the strategy's
// platform. It prefers the persisted session; on validation failure it runs
// one bounded credential login and persists the fresh cookie set. A detected
// CAPTCHA surfaces immediately as *faults.CaptchaDetectedError.
func (m *Manager) EnsureValid(ctx context.Context, page browser.Page, userID string, strat platform.Strategy) error {
	name := strat.Name()

	cred, err := m.store.GetCredential(ctx, userID, name)
	if err != nil {
		return eris.Wrapf(err, "session: load credential for %s/%s", userID, name)
	}
	if cred == nil {
		return &faults.LoginFailedError{Platform: name, Reason: "no active credential on file"}
	}

	key := userID + "|" + name
	now := time.Now()

	if cred.HasLiveSession(now) {
		if err := m.injectSession(ctx, page, cred.SessionBlob); err != nil {
			zap.L().Warn("session blob unusable, falling back to login",
				zap.String("platform", name), zap.Error(err))
		} else if m.isCachedValid(key, now) {
			return nil
		} else if err := m.validate(ctx, page, strat); err == nil {
			m.markValid(key, cred.SessionExpiresAt)
			zap.L().Debug("persisted session validated",
				zap.String("platform", name), zap.String("user_id", userID))
			return nil
		} else if faults.IsCaptcha(err) {
			return err
		} else {
			zap.L().Info("persisted session failed validation, logging in",
				zap.String("platform", name), zap.Error(err))
		}
	}

	retry := m.retry
	retry.ShouldRetry = func(err error) bool {
		// A challenge or missing form will not resolve on its own.
		return !faults.IsCaptcha(err) && !faults.IsLayoutChanged(err)
	}
	retry.OnRetry = resilience.RetryLogger(name, "login")

	if err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		return m.login(ctx, page, cred, strat)
	}); err != nil {
		m.invalidate(key)
		m.captureDiagnostic(ctx, page, name)
		return err
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		return eris.Wrapf(err, "session: read cookies after login on %s", name)
	}
	blob, err := json.Marshal(cookies)
	if err != nil {
		return eris.Wrap(err, "session: encode cookie blob")
	}

	expires := time.Now().Add(m.ttl)
	if err := m.store.SaveSession(ctx, userID, name, blob, expires); err != nil {
		return eris.Wrapf(err, "session: persist session for %s/%s", userID, name)
	}
	m.markValid(key, expires)

	zap.L().Info("session refreshed via login",
		zap.String("platform", name),
		zap.String("user_id", userID),
		zap.Time("expires_at", expires),
	)
	return nil
}

// Invalidate drops the in-process validation for (userID, platform), forcing
// the next EnsureValid to re-probe. Called by the submitter when a platform
// bounces an authenticated page to login.
func (m *Manager) Invalidate(userID, platformName string) {
	m.invalidate(userID + "|" + platformName)
}

func (m *Manager) injectSession(ctx context.Context, page browser.Page, blob []byte) error {
	var cookies []browser.Cookie
	if err := json.Unmarshal(blob, &cookies); err != nil {
		return eris.Wrap(err, "session: decode cookie blob")
	}
	if len(cookies) == 0 {
		return eris.New("session: cookie blob is empty")
	}
	if err := page.SetCookies(ctx, cookies); err != nil {
		return eris.Wrap(err, "session: inject cookies")
	}
	return nil
}

// validate navigates to an authenticated-only page and checks for a
// logged-in marker. Absence means the session is dead.
func (m *Manager) validate(ctx context.Context, page browser.Page, strat platform.Strategy) error {
	name := strat.Name()
	if err := page.Navigate(ctx, strat.AccountURL()); err != nil {
		return eris.Wrapf(err, "session: navigate account page on %s", name)
	}

	sels := strat.Selectors()
	if err := m.failOnCaptcha(ctx, page, name, sels.Captcha); err != nil {
		return err
	}

	found, err := waitAny(ctx, page, sels.LoggedInMarkers, m.selTimeout)
	if err != nil {
		return eris.Wrapf(err, "session: probe logged-in markers on %s", name)
	}
	if found == "" {
		return faults.ErrSessionExpired
	}
	return nil
}

// login runs one full credential login. The CAPTCHA probe runs before any
// credential touches the page.
func (m *Manager) login(ctx context.Context, page browser.Page, cred *model.PlatformCredential, strat platform.Strategy) error {
	name := strat.Name()
	sels := strat.Selectors()

	if err := page.Navigate(ctx, strat.LoginURL()); err != nil {
		return eris.Wrapf(err, "session: navigate login page on %s", name)
	}

	m.dismissConsent(ctx, page, sels.CookieConsent)

	if err := m.failOnCaptcha(ctx, page, name, sels.Captcha); err != nil {
		return err
	}

	emailSel, err := waitAny(ctx, page, sels.LoginEmail, m.selTimeout)
	if err != nil {
		return eris.Wrapf(err, "session: probe login form on %s", name)
	}
	if emailSel == "" {
		return &faults.LayoutChangedError{Platform: name, Selector: firstOrEmpty(sels.LoginEmail)}
	}
	if err := page.Fill(ctx, emailSel, cred.LoginEmail); err != nil {
		return eris.Wrapf(err, "session: fill email on %s", name)
	}

	passSel, err := firstExisting(ctx, page, sels.LoginPassword)
	if err != nil {
		return eris.Wrapf(err, "session: probe password field on %s", name)
	}
	if passSel == "" {
		return &faults.LayoutChangedError{Platform: name, Selector: firstOrEmpty(sels.LoginPassword)}
	}
	if err := page.Fill(ctx, passSel, cred.LoginSecret); err != nil {
		return eris.Wrapf(err, "session: fill password on %s", name)
	}

	submitSel, err := firstExisting(ctx, page, sels.LoginSubmit)
	if err != nil {
		return eris.Wrapf(err, "session: probe submit control on %s", name)
	}
	if submitSel == "" {
		return &faults.LayoutChangedError{Platform: name, Selector: firstOrEmpty(sels.LoginSubmit)}
	}
	if err := page.Click(ctx, submitSel); err != nil {
		return eris.Wrapf(err, "session: click submit on %s", name)
	}

	marker, err := waitAny(ctx, page, sels.LoggedInMarkers, m.selTimeout)
	if err != nil {
		return eris.Wrapf(err, "session: wait for authenticated state on %s", name)
	}
	if marker != "" {
		return nil
	}

	// No marker: surface the platform's own error text when it showed one.
	if errSel, probeErr := firstExisting(ctx, page, sels.LoginError); probeErr == nil && errSel != "" {
		if text, textErr := page.Text(ctx, errSel); textErr == nil && text != "" {
			return &faults.LoginFailedError{Platform: name, Reason: text}
		}
	}
	if err := m.failOnCaptcha(ctx, page, name, sels.Captcha); err != nil {
		return err
	}
	return &faults.LoginFailedError{Platform: name, Reason: "did not reach an authenticated state"}
}

// dismissConsent clicks through a cookie banner when present. Best-effort.
func (m *Manager) dismissConsent(ctx context.Context, page browser.Page, selectors []string) {
	sel, err := firstExisting(ctx, page, selectors)
	if err != nil || sel == "" {
		return
	}
	if err := page.Click(ctx, sel); err != nil {
		zap.L().Debug("cookie banner dismiss failed", zap.String("selector", sel), zap.Error(err))
	}
}

func (m *Manager) failOnCaptcha(ctx context.Context, page browser.Page, platformName string, selectors []string) error {
	sel, err := firstExisting(ctx, page, selectors)
	if err != nil {
		return eris.Wrapf(err, "session: probe captcha on %s", platformName)
	}
	if sel == "" {
		return nil
	}
	loc, _ := page.Location(ctx)
	return &faults.CaptchaDetectedError{Platform: platformName, PageURL: loc}
}

// captureDiagnostic writes a screenshot of the failed page when a directory
// is configured. Failures here are logged, never propagated.
func (m *Manager) captureDiagnostic(ctx context.Context, page browser.Page, platformName string) {
	if m.screenshotDir == "" {
		return
	}
	shot, err := page.Screenshot(ctx)
	if err != nil {
		zap.L().Debug("diagnostic screenshot failed", zap.String("platform", platformName), zap.Error(err))
		return
	}
	path := filepath.Join(m.screenshotDir, fmt.Sprintf("login-%s-%d.png", platformName, time.Now().Unix()))
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		zap.L().Debug("diagnostic screenshot write failed", zap.String("path", path), zap.Error(err))
		return
	}
	zap.L().Info("login diagnostic captured", zap.String("platform", platformName), zap.String("path", path))
}

func (m *Manager) isCachedValid(key string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.validated[key]
	return ok && now.Before(expiry)
}

func (m *Manager) markValid(key string, expiry time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validated[key] = expiry
}

func (m *Manager) invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.validated, key)
}

// firstExisting returns the first selector currently present on the page.
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

// waitAny waits up to timeout for any of the selectors to become visible,
// polling the set so a slow-rendering marker still matches. Returns the
// matched selector or "" on timeout.
func waitAny(ctx context.Context, page browser.Page, selectors []string, timeout time.Duration) (string, error) {
	if len(selectors) == 0 {
		return "", nil
	}
	deadline := time.Now().Add(timeout)
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

func firstOrEmpty(selectors []string) string {
	if len(selectors) == 0 {
		return ""
	}
	return selectors[0]
}
