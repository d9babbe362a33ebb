package platform

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Workana drives workana.com, the primarily Spanish-language marketplace.
type Workana struct {
	selectors SelectorSet
}

// NewWorkana returns the workana strategy with its built-in selector set.
func NewWorkana() *Workana {
	return &Workana{selectors: workanaSelectors}
}

var workanaSelectors = SelectorSet{
	CookieConsent: []string{
		"#onetrust-accept-btn-handler",
		"button.cookie-consent-accept",
	},
	Captcha: []string{
		"iframe[src*='recaptcha']",
		"iframe[src*='hcaptcha']",
		"#captcha-container",
	},
	LoginEmail:    []string{"input#email", "input[name='email']"},
	LoginPassword: []string{"input#password", "input[name='password']"},
	LoginSubmit:   []string{"button[type='submit']", "form.login-form button"},
	LoginError: []string{
		".alert-danger",
		".form-error-message",
	},
	LoggedInMarkers: []string{
		"a[href*='/logout']",
		".user-profile-menu",
		"#header-user-dropdown",
	},
	ViewMore: []string{"a.link.small[href='#']", ".html-desc .expander a"},
	NotFound: []string{".error-404", ".page-not-found"},
	BidInput: []string{
		"textarea#content",
		"textarea[name='content']",
		"textarea.bid-message",
	},
	BidSubmit: RankedSelectors{
		Candidates: []string{
			"form#bid-form button[type='submit']",
			"button.btn-primary[type='submit']",
			"form button[type='submit']",
		},
		Exclude: []string{"search", "buscar", "filter", "filtrar"},
	},
	BidError: []string{
		".alert-danger",
		".bid-form .error",
		"span.help-block.error",
	},
}

func (w *Workana) Name() string { return "workana" }

func (w *Workana) ListingURL() string { return "https://www.workana.com/jobs?language=es%2Cen" }

func (w *Workana) LoginURL() string { return "https://www.workana.com/login" }

func (w *Workana) AccountURL() string { return "https://www.workana.com/dashboard" }

func (w *Workana) ItemSelector() string { return "div.project-item" }

func (w *Workana) Selectors() SelectorSet { return w.selectors }

func (w *Workana) applyOverrides(set SelectorSet) {
	w.selectors = w.selectors.merge(set)
}

// BidURL rewrites a job link into its bid page, e.g.
// /job/some-slug -> /messages/bid/some-slug.
func (w *Workana) BidURL(postingLink string) (string, error) {
	if !strings.Contains(postingLink, "/job/") {
		return "", eris.Errorf("workana: link %q is not a job page", postingLink)
	}
	return strings.Replace(postingLink, "/job/", "/messages/bid/", 1), nil
}

// ExtractScript pulls one raw posting per listing card. Fields that are
// missing on a card come back as empty strings and are handled by the
// extractor's per-node validation.
func (w *Workana) ExtractScript() string {
	return `
(() => Array.from(document.querySelectorAll('div.project-item')).map(el => {
	const pick = (sel) => { const n = el.querySelector(sel); return n ? n.innerText.trim() : ''; };
	const link = el.querySelector('h2.project-title a, a.project-title');
	const skills = Array.from(el.querySelectorAll('.skills a.skill, .skills span')).map(s => s.innerText.trim()).filter(Boolean);
	const ratingNode = el.querySelector('.stars[title], .author-info .stars');
	let rating = 0;
	if (ratingNode) {
		const m = (ratingNode.getAttribute('title') || '').match(/([0-9][.,][0-9]{1,2}|[0-5])/);
		if (m) rating = parseFloat(m[1].replace(',', '.'));
	}
	return {
		link: link ? link.href : '',
		title: pick('h2.project-title a, a.project-title'),
		description: pick('.html-desc.project-details, .project-details'),
		price_info: pick('.budget .values, .budget'),
		skills: skills,
		client_name: pick('.author-info a.author-name, .author-name'),
		client_country: pick('.author-info .country-name, .country-name'),
		client_rating: rating,
		payment_verified: el.querySelector('.payment-verified, .icon-circle-check') !== null,
		featured: el.classList.contains('project-item-featured') || el.querySelector('.label-featured') !== null,
	};
}))()
`
}
