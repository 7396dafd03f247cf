package collab

import (
	"context"
	"net/url"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab/rest"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
)

// Voucher is the voucher service: balance accounts, partner networks and
// vouchers.
type Voucher struct{ c *rest.Client }

func (s *Voucher) CreateBalanceAccount(ctx context.Context, b any) (domain.BalanceAccount, error) {
	var out domain.BalanceAccount
	err := s.c.Post(ctx, "/balance-accounts", b, &out)
	return out, err
}

func (s *Voucher) BalanceAccount(ctx context.Context, id string) (domain.BalanceAccount, error) {
	var b domain.BalanceAccount
	err := s.c.Get(ctx, "/balance-accounts/"+rest.PathID(id), nil, &b)
	return b, notFound(err, "BalanceAccount", "balance account")
}

func (s *Voucher) PartnerNetwork(ctx context.Context, id string) (domain.PartnerNetwork, error) {
	var p domain.PartnerNetwork
	err := s.c.Get(ctx, "/partner-networks/"+rest.PathID(id), nil, &p)
	return p, notFound(err, "PartnerNetwork", "partner network")
}

func (s *Voucher) PatchPartnerNetwork(ctx context.Context, id string, patch map[string]any) error {
	return notFound(s.c.Patch(ctx, "/partner-networks/"+rest.PathID(id), patch, nil), "PartnerNetwork", "partner network")
}

// VouchersByIssuer lists vouchers issued by merchantID.
func (s *Voucher) VouchersByIssuer(ctx context.Context, merchantID string) ([]domain.Voucher, error) {
	var out []domain.Voucher
	err := s.c.Get(ctx, "/vouchers", url.Values{"issuerMerchantID": {merchantID}}, &out)
	if isNotFound(err) {
		return nil, nil
	}
	return out, err
}
