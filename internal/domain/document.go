// Package domain holds the documents owned by the collaborator services.
// Only the fields this API reads or patches are typed; the raw body is kept
// so GET endpoints can return the document exactly as the owner stored it.
package domain

import (
	"encoding/json"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/access"
)

// Document keeps the collaborator's original JSON body.
type Document struct {
	raw json.RawMessage
}

// SetRaw stores the original body. Called by the collaborator clients.
func (d *Document) SetRaw(raw json.RawMessage) { d.raw = raw }

// Raw returns the original body, or nil for documents built locally.
func (d Document) Raw() json.RawMessage { return d.raw }

// grant is shorthand for a direct ownership marker.
func grant(merchantID string) []access.Grant {
	if merchantID == "" {
		return nil
	}
	return []access.Grant{{MerchantID: merchantID}}
}
