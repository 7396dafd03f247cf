package collab

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab/rest"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
)

// Merchant is the merchant service: merchants, business units, price plans,
// billing, logs, webshops and countries.
type Merchant struct{ c *rest.Client }

func (s *Merchant) Merchant(ctx context.Context, id string) (domain.Merchant, error) {
	var m domain.Merchant
	err := s.c.Get(ctx, "/merchants/"+rest.PathID(id), nil, &m)
	return m, notFound(err, "Merchant", "merchant")
}

func (s *Merchant) CreateMerchant(ctx context.Context, m any) (domain.Merchant, error) {
	var out domain.Merchant
	err := s.c.Post(ctx, "/merchants", m, &out)
	return out, err
}

func (s *Merchant) PatchMerchant(ctx context.Context, id string, patch map[string]any) error {
	return notFound(s.c.Patch(ctx, "/merchants/"+rest.PathID(id), patch, nil), "Merchant", "merchant")
}

func (s *Merchant) DeleteMerchant(ctx context.Context, id string) error {
	return notFound(s.c.Delete(ctx, "/merchants/"+rest.PathID(id), nil), "Merchant", "merchant")
}

func (s *Merchant) BusinessUnit(ctx context.Context, id string) (domain.BusinessUnit, error) {
	var b domain.BusinessUnit
	err := s.c.Get(ctx, "/business-units/"+rest.PathID(id), nil, &b)
	return b, notFound(err, "BusinessUnit", "business-unit")
}

// BusinessUnits lists the units of a merchant as stored.
func (s *Merchant) BusinessUnits(ctx context.Context, merchantID string) (json.RawMessage, error) {
	return s.c.GetRaw(ctx, "/business-units", url.Values{"merchantID": {merchantID}})
}

func (s *Merchant) CreateBusinessUnit(ctx context.Context, b any) (domain.BusinessUnit, error) {
	var out domain.BusinessUnit
	err := s.c.Post(ctx, "/business-units", b, &out)
	return out, err
}

func (s *Merchant) PatchBusinessUnit(ctx context.Context, id string, patch map[string]any) error {
	return notFound(s.c.Patch(ctx, "/business-units/"+rest.PathID(id), patch, nil), "BusinessUnit", "business-unit")
}

func (s *Merchant) DeleteBusinessUnit(ctx context.Context, id string) error {
	return notFound(s.c.Delete(ctx, "/business-units/"+rest.PathID(id), nil), "BusinessUnit", "business-unit")
}

func (s *Merchant) PricePlan(ctx context.Context, id string) (domain.PricePlan, error) {
	var p domain.PricePlan
	err := s.c.Get(ctx, "/priceplans/"+rest.PathID(id), nil, &p)
	return p, notFound(err, "PricePlan", "price plan")
}

func (s *Merchant) CreateMerchantPricePlan(ctx context.Context, mp domain.MerchantPricePlan) error {
	return s.c.Post(ctx, "/merchant-priceplan", mp, nil)
}

func (s *Merchant) CreateMerchantBilling(ctx context.Context, b domain.MerchantBilling) error {
	return s.c.Post(ctx, "/merchant-billing", b, nil)
}

func (s *Merchant) CreateMerchantLog(ctx context.Context, l domain.MerchantLog) error {
	return s.c.Post(ctx, "/merchant-log", l, nil)
}

func (s *Merchant) Webshop(ctx context.Context, id string) (domain.Webshop, error) {
	var w domain.Webshop
	err := s.c.Get(ctx, "/webshops/"+rest.PathID(id), nil, &w)
	return w, notFound(err, "Webshop", "webshop")
}

func (s *Merchant) Countries(ctx context.Context) (json.RawMessage, error) {
	return s.c.GetRaw(ctx, "/countries", nil)
}
