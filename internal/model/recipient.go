package model

// Recipient is a notification target. The core only reads the handle and the
// active flag; recipient management belongs to the external API.
type Recipient struct {
	ID      string `json:"id"`
	Handle  string `json:"handle"`
	Channel string `json:"channel"`
	Active  bool   `json:"active"`
}

// SearchProfile holds a user's professional profile text and proposal
// directives used to drive personalized generation. Either field may be
// empty, in which case the generic prompt path is used.
type SearchProfile struct {
	UserID     string `json:"user_id"`
	Profile    string `json:"profile"`
	Directives string `json:"directives"`
}
