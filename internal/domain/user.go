package domain

import "github.com/anshika-invatu/merchantwebapi-sub000/internal/access"

// User is the identity record.
type User struct {
	Document        `json:"-"`
	ID              string           `json:"_id"`
	Email           string           `json:"email"`
	FirstName       string           `json:"firstName,omitempty"`
	LastName        string           `json:"lastName,omitempty"`
	Merchants       []MerchantLink   `json:"merchants"`
	MerchantInvites []MerchantInvite `json:"merchantInvites,omitempty"`
	Consents        []map[string]any `json:"consents,omitempty"`
	IsEnabled       bool             `json:"isEnabled"`
}

// MerchantLink ties a user to a merchant. Roles is a comma separated string.
type MerchantLink struct {
	MerchantID   string `json:"merchantID"`
	MerchantName string `json:"merchantName"`
	Roles        string `json:"roles"`
}

type MerchantInvite struct {
	MerchantID   string `json:"merchantID"`
	MerchantName string `json:"merchantName"`
	Roles        string `json:"roles"`
	InviteCode   string `json:"inviteCode"`
	InvitedBy    string `json:"invitedBy"`
	InviteDate   string `json:"inviteDate"`
}

// Links exposes the merchant links to the access checker.
func (u User) Links() []access.Link {
	out := make([]access.Link, 0, len(u.Merchants))
	for _, m := range u.Merchants {
		out = append(out, access.Link{MerchantID: m.MerchantID, Roles: m.Roles})
	}
	return out
}

// Link returns the user's link to merchantID.
func (u User) Link(merchantID string) (MerchantLink, bool) {
	for _, m := range u.Merchants {
		if m.MerchantID == merchantID {
			return m, true
		}
	}
	return MerchantLink{}, false
}

// WithoutMerchant returns a copy of the merchants list without merchantID.
func (u User) WithoutMerchant(merchantID string) []MerchantLink {
	out := make([]MerchantLink, 0, len(u.Merchants))
	for _, m := range u.Merchants {
		if m.MerchantID != merchantID {
			out = append(out, m)
		}
	}
	return out
}

// HasInvite reports whether an invite for merchantID is pending.
func (u User) HasInvite(merchantID string) bool {
	for _, inv := range u.MerchantInvites {
		if inv.MerchantID == merchantID {
			return true
		}
	}
	return false
}
