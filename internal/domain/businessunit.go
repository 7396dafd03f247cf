package domain

import "github.com/anshika-invatu/merchantwebapi-sub000/internal/access"

type BusinessUnit struct {
	Document         `json:"-"`
	ID               string              `json:"_id"`
	BusinessUnitName string              `json:"businessUnitName"`
	MerchantID       string              `json:"merchantID"`
	MerchantName     string              `json:"merchantName,omitempty"`
	PointOfServices  []PointOfServiceRef `json:"pointOfServices"`
}

func (b BusinessUnit) Grants() []access.Grant { return grant(b.MerchantID) }

type PointOfServiceRef struct {
	PointOfServiceID   string `json:"pointOfServiceID"`
	PointOfServiceName string `json:"pointOfServiceName,omitempty"`
}

func (b BusinessUnit) HasPointOfService(id string) bool {
	for _, p := range b.PointOfServices {
		if p.PointOfServiceID == id {
			return true
		}
	}
	return false
}

// Availability values accepted for a point of service.
const (
	AvailabilityOperative   = "Operative"
	AvailabilityInoperative = "Inoperative"
)

type PointOfService struct {
	Document           `json:"-"`
	ID                 string `json:"_id"`
	PointOfServiceName string `json:"pointOfServiceName"`
	MerchantID         string `json:"merchantID"`
	BusinessUnitID     string `json:"businessUnitID,omitempty"`
	Availability       string `json:"availability,omitempty"`
}

func (p PointOfService) Grants() []access.Grant { return grant(p.MerchantID) }
