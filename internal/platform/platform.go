// Package platform holds the per-marketplace strategies: where to navigate,
// which DOM selectors identify listings, login state and bid forms, and how a
// posting link maps to its bid-entry page. Selector strings are configuration
// data, not core logic; they can be overridden from a YAML file when a
// platform ships a layout change.
package platform

// Strategy describes one marketplace. Implementations are stateless; the
// extractor, session manager, and submitter drive a browser page using the
// strategy's selectors.
type Strategy interface {
	// Name is the platform identifier stored with postings and credentials.
	Name() string
	// ListingURL is the public page listing open projects.
	ListingURL() string
	// LoginURL is the credential login page.
	LoginURL() string
	// AccountURL is an authenticated-only page used to validate sessions.
	AccountURL() string
	// ItemSelector matches one listing node per posting.
	ItemSelector() string
	// ExtractScript is a JavaScript expression evaluated on the listing page
	// that returns an array of raw posting objects.
	ExtractScript() string
	// BidURL rewrites a posting's canonical link into its bid-entry URL.
	BidURL(postingLink string) (string, error)
	// Selectors returns the full selector set for this platform.
	Selectors() SelectorSet
}

// RankedSelectors is an ordered list of capability probes. Candidates are
// tried in priority order, first match wins; Exclude carries lowercase
// substrings that disqualify an otherwise matching element (e.g. search
// buttons that sit next to the real submit control).
type RankedSelectors struct {
	Candidates []string `yaml:"candidates"`
	Exclude    []string `yaml:"exclude,omitempty"`
}

// SelectorSet groups every selector a platform strategy needs.
type SelectorSet struct {
	CookieConsent   []string        `yaml:"cookie_consent,omitempty"`
	Captcha         []string        `yaml:"captcha,omitempty"`
	LoginEmail      []string        `yaml:"login_email"`
	LoginPassword   []string        `yaml:"login_password"`
	LoginSubmit     []string        `yaml:"login_submit"`
	LoginError      []string        `yaml:"login_error,omitempty"`
	LoggedInMarkers []string        `yaml:"logged_in_markers"`
	ViewMore        []string        `yaml:"view_more,omitempty"`
	NotFound        []string        `yaml:"not_found,omitempty"`
	BidInput        []string        `yaml:"bid_input"`
	BidSubmit       RankedSelectors `yaml:"bid_submit"`
	BidError        []string        `yaml:"bid_error,omitempty"`
}

// merge overlays non-empty fields from o onto s.
func (s SelectorSet) merge(o SelectorSet) SelectorSet {
	if len(o.CookieConsent) > 0 {
		s.CookieConsent = o.CookieConsent
	}
	if len(o.Captcha) > 0 {
		s.Captcha = o.Captcha
	}
	if len(o.LoginEmail) > 0 {
		s.LoginEmail = o.LoginEmail
	}
	if len(o.LoginPassword) > 0 {
		s.LoginPassword = o.LoginPassword
	}
	if len(o.LoginSubmit) > 0 {
		s.LoginSubmit = o.LoginSubmit
	}
	if len(o.LoginError) > 0 {
		s.LoginError = o.LoginError
	}
	if len(o.LoggedInMarkers) > 0 {
		s.LoggedInMarkers = o.LoggedInMarkers
	}
	if len(o.ViewMore) > 0 {
		s.ViewMore = o.ViewMore
	}
	if len(o.NotFound) > 0 {
		s.NotFound = o.NotFound
	}
	if len(o.BidInput) > 0 {
		s.BidInput = o.BidInput
	}
	if len(o.BidSubmit.Candidates) > 0 {
		s.BidSubmit = o.BidSubmit
	}
	if len(o.BidError) > 0 {
		s.BidError = o.BidError
	}
	return s
}
