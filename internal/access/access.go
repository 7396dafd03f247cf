// Package access decides whether an identity may act on a resource.
//
// A resource exposes its ownership markers as grants. A direct marker
// (merchantID, issuerMerchantID, ownerMerchantID) is a grant without roles;
// an embedded ACL entry (adminRights, partnerNetworkMembers) carries its own
// role string. An identity passes when one of its merchant links names the
// same merchant and, if a role is required, the relevant role string holds it.
package access

import (
	"fmt"
	"strings"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
)

// Role tokens used by the endpoints.
const (
	RoleAdmin = "admin"
	RoleView  = "view"
)

// Grant is one ownership marker on a resource.
type Grant struct {
	MerchantID string
	Roles      string
}

// Link is one merchant relationship held by an identity.
type Link struct {
	MerchantID string
	Roles      string
}

// Owned is implemented by every resource document.
type Owned interface {
	Grants() []Grant
}

// Grants adapts a bare grant list, e.g. only the admin entries of an ACL.
type Grants []Grant

func (g Grants) Grants() []Grant { return g }

// Identity is implemented by the caller's user document.
type Identity interface {
	Links() []Link
}

// Mode selects how role strings are matched.
type Mode int

const (
	// ModeExact splits the role string on commas and requires an exact token.
	ModeExact Mode = iota
	// ModeSubstring reproduces the legacy regex behaviour: "admin" also
	// matches "administrator" and "coadmin".
	ModeSubstring
)

// ParseMode maps the config value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return ModeExact, nil
	case "substring":
		return ModeSubstring, nil
	default:
		return ModeExact, fmt.Errorf("access: unknown role match mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeSubstring {
		return "substring"
	}
	return "exact"
}

// RoleSet is a parsed comma separated role string.
type RoleSet map[string]struct{}

// ParseRoles splits "admin, view" into {admin, view}. Tokens are trimmed and
// lower-cased; empty tokens are dropped.
func ParseRoles(s string) RoleSet {
	set := RoleSet{}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

func (r RoleSet) Has(role string) bool {
	_, ok := r[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// Checker applies the configured role match mode.
type Checker struct {
	Mode Mode
}

// HasRole reports whether roles satisfies role under the checker's mode.
// An empty requirement is always satisfied.
func (c Checker) HasRole(roles, role string) bool {
	role = strings.TrimSpace(role)
	if role == "" {
		return true
	}
	if c.Mode == ModeSubstring {
		return strings.Contains(strings.ToLower(roles), strings.ToLower(role))
	}
	return ParseRoles(roles).Has(role)
}

// Linked reports whether id links to merchantID with role.
func (c Checker) Linked(id Identity, merchantID, role string) bool {
	if id == nil || merchantID == "" {
		return false
	}
	for _, l := range id.Links() {
		if l.MerchantID == merchantID && c.HasRole(l.Roles, role) {
			return true
		}
	}
	return false
}

// Allowed reports whether id may act on a resource with the given grants.
// For grants that carry their own roles the requirement is checked there;
// direct markers check the identity's link roles.
func (c Checker) Allowed(id Identity, grants []Grant, role string) bool {
	if id == nil {
		return false
	}
	links := id.Links()
	for _, g := range grants {
		if g.MerchantID == "" {
			continue
		}
		for _, l := range links {
			if l.MerchantID != g.MerchantID {
				continue
			}
			roles := l.Roles
			if g.Roles != "" {
				roles = g.Roles
			}
			if c.HasRole(roles, role) {
				return true
			}
		}
	}
	return false
}

// Authorize returns denied (or the default UserNotAuthenticatedError) when
// id may not act on res.
func (c Checker) Authorize(id Identity, res Owned, role string, denied *apierr.Error) error {
	if res != nil && c.Allowed(id, res.Grants(), role) {
		return nil
	}
	if denied == nil {
		denied = apierr.NotAuthenticated("")
	}
	return denied
}

// RequireLink is Authorize for a bare merchant id.
func (c Checker) RequireLink(id Identity, merchantID, role string, denied *apierr.Error) error {
	if c.Linked(id, merchantID, role) {
		return nil
	}
	if denied == nil {
		denied = apierr.NotAuthenticated("MerchantID not linked to user")
	}
	return denied
}
