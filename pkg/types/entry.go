package types

import (
	"time"
)

// Entry is one configured Frank Energie account and delivery site, the unit
// that gets its own refresh coordinator.
type Entry struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Email         string `json:"email"`
	SiteReference string `json:"siteReference,omitempty"`

	// Disabled entries are kept in storage but never refreshed.
	Disabled bool `json:"disabled,omitempty"`

	// EncryptedCredentials holds an encrypted Authentication, empty for
	// entries that only track public prices.
	EncryptedCredentials []byte `json:"encryptedCredentials,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Authentication is the token pair issued by Login and RenewToken.
type Authentication struct {
	AuthToken    string `json:"authToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty returns true when there is no token to authenticate with.
func (a Authentication) Empty() bool {
	return a.AuthToken == ""
}
