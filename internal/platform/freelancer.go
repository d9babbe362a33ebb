package platform

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Freelancer drives freelancer.com. Bids are entered on the project page
// itself, so BidURL is the canonical link normalized to the details tab.
type Freelancer struct {
	selectors SelectorSet
}

// NewFreelancer returns the freelancer strategy with its built-in selectors.
func NewFreelancer() *Freelancer {
	return &Freelancer{selectors: freelancerSelectors}
}

var freelancerSelectors = SelectorSet{
	CookieConsent: []string{
		"#onetrust-accept-btn-handler",
		"button[data-qa='cookie-accept']",
	},
	Captcha: []string{
		"iframe[src*='recaptcha']",
		"iframe[title='reCAPTCHA']",
		"div.g-recaptcha",
	},
	LoginEmail:    []string{"input#emailOrUsernameInput", "input[name='user']"},
	LoginPassword: []string{"input#passwordInput", "input[name='password']"},
	LoginSubmit:   []string{"button#login_btn", "app-login button[type='submit']"},
	LoginError: []string{
		"app-login .ErrorText",
		".LoginForm-error",
	},
	LoggedInMarkers: []string{
		"fl-nav-user-menu",
		"a[href*='/logout']",
		"[data-qa='user-avatar']",
	},
	ViewMore: []string{"fl-link.ShowMore a", "a.show-more"},
	NotFound: []string{".Error404", "[data-qa='404-page']"},
	BidInput: []string{
		"textarea#descriptionTextArea",
		"textarea[name='description']",
		"app-bid-form textarea",
	},
	BidSubmit: RankedSelectors{
		Candidates: []string{
			"app-bid-form button[type='submit']",
			"button[data-qa='bid-submit']",
			"form button[type='submit']",
		},
		Exclude: []string{"search", "filter", "upgrade"},
	},
	BidError: []string{
		"app-bid-form .ErrorText",
		".BidForm-error",
	},
}

func (f *Freelancer) Name() string { return "freelancer" }

func (f *Freelancer) ListingURL() string { return "https://www.freelancer.com/jobs/" }

func (f *Freelancer) LoginURL() string { return "https://www.freelancer.com/login" }

func (f *Freelancer) AccountURL() string { return "https://www.freelancer.com/dashboard" }

func (f *Freelancer) ItemSelector() string { return "div.JobSearchCard-item" }

func (f *Freelancer) Selectors() SelectorSet { return f.selectors }

func (f *Freelancer) applyOverrides(set SelectorSet) {
	f.selectors = f.selectors.merge(set)
}

// BidURL validates the link points at a project page and strips any fragment
// or tracking suffix; the bid form lives on the project page.
func (f *Freelancer) BidURL(postingLink string) (string, error) {
	if !strings.Contains(postingLink, "/projects/") {
		return "", eris.Errorf("freelancer: link %q is not a project page", postingLink)
	}
	if i := strings.IndexAny(postingLink, "?#"); i >= 0 {
		postingLink = postingLink[:i]
	}
	return postingLink + "/details", nil
}

func (f *Freelancer) ExtractScript() string {
	return `
(() => Array.from(document.querySelectorAll('div.JobSearchCard-item')).map(el => {
	const pick = (sel) => { const n = el.querySelector(sel); return n ? n.innerText.trim() : ''; };
	const link = el.querySelector('a.JobSearchCard-primary-heading-link');
	const skills = Array.from(el.querySelectorAll('.JobSearchCard-primary-tags a')).map(s => s.innerText.trim()).filter(Boolean);
	const ratingText = pick('.JobSearchCard-primary-heading-days ~ .Rating, .Rating-review');
	const m = ratingText.match(/[0-9]\.[0-9]/);
	return {
		link: link ? link.href : '',
		title: pick('a.JobSearchCard-primary-heading-link'),
		description: pick('p.JobSearchCard-primary-description'),
		price_info: pick('.JobSearchCard-secondary-price'),
		skills: skills,
		client_name: pick('.JobSearchCard-secondary-entry a'),
		client_country: pick('.JobSearchCard-location'),
		client_rating: m ? parseFloat(m[0]) : 0,
		payment_verified: el.querySelector('.Icon--payment-verified, [data-qa=payment-verified]') !== null,
		featured: el.classList.contains('JobSearchCard-item--featured'),
	};
}))()
`
}
