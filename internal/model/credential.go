package model

import "time"

// PlatformCredential holds one user's login and persisted session for a
// marketplace. Identity is (UserID, Platform). SessionBlob is an opaque
// serialized cookie set written whole on every refresh, never partially.
type PlatformCredential struct {
	UserID           string    `json:"user_id"`
	Platform         string    `json:"platform"`
	LoginEmail       string    `json:"login_email"`
	LoginSecret      string    `json:"-"`
	SessionBlob      []byte    `json:"-"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
	Active           bool      `json:"active"`
}

// HasLiveSession reports whether a persisted session blob exists and has not
// passed its expiry.
func (c *PlatformCredential) HasLiveSession(now time.Time) bool {
	return len(c.SessionBlob) > 0 && now.Before(c.SessionExpiresAt)
}
