package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Language is the detected language of a posting's text.
type Language string

const (
	LangSpanish Language = "es"
	LangEnglish Language = "en"
	LangUnknown Language = "unknown"
)

// JobPosting is a scraped marketplace listing. Identity is (Link, Platform);
// records are immutable once stored.
type JobPosting struct {
	ID              string    `json:"id"`
	Link            string    `json:"link"`
	Platform        string    `json:"platform"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PriceInfo       string    `json:"price_info"`
	Skills          []string  `json:"skills,omitempty"`
	ClientName      string    `json:"client_name,omitempty"`
	ClientCountry   string    `json:"client_country,omitempty"`
	ClientRating    float64   `json:"client_rating"`
	PaymentVerified bool      `json:"payment_verified"`
	Featured        bool      `json:"featured"`
	Language        Language  `json:"language"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
}

// Validate checks the fields required before a posting can be persisted.
func (p *JobPosting) Validate() error {
	if strings.TrimSpace(p.Link) == "" {
		return eris.New("model: posting link is required")
	}
	if strings.TrimSpace(p.Platform) == "" {
		return eris.New("model: posting platform is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return eris.New("model: posting title is required")
	}
	if p.ClientRating < 0 || p.ClientRating > 5 {
		return eris.Errorf("model: client rating %.2f out of range [0,5]", p.ClientRating)
	}
	return nil
}

// Key returns the (link, platform) identity of the posting.
func (p *JobPosting) Key() string {
	return p.Platform + "|" + p.Link
}
