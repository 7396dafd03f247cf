package collab

import (
	"context"
	"net/url"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab/rest"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
)

// Order is the order/billing service.
type Order struct{ c *rest.Client }

func (s *Order) Account(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	err := s.c.Get(ctx, "/accounts/"+rest.PathID(id), nil, &a)
	return a, notFound(err, "Account", "account")
}

// AccountTransactions lists transactions of merchantID booked within
// [fromDate, toDate] (YYYY-MM-DD, inclusive).
func (s *Order) AccountTransactions(ctx context.Context, merchantID, fromDate, toDate string) ([]domain.AccountTransaction, error) {
	var out []domain.AccountTransaction
	err := s.c.Get(ctx, "/account-transactions", url.Values{
		"merchantID": {merchantID},
		"fromDate":   {fromDate},
		"toDate":     {toDate},
	}, &out)
	if isNotFound(err) {
		return nil, nil
	}
	return out, err
}

func (s *Order) RetailTransaction(ctx context.Context, id string) (domain.RetailTransaction, error) {
	var r domain.RetailTransaction
	err := s.c.Get(ctx, "/retail-transaction/"+rest.PathID(id), nil, &r)
	return r, notFound(err, "RetailTransaction", "retail transaction")
}

func (s *Order) Order(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := s.c.Get(ctx, "/orders/"+rest.PathID(id), nil, &o)
	return o, notFound(err, "Order", "order")
}

func (s *Order) PatchOrder(ctx context.Context, id string, patch map[string]any) error {
	return notFound(s.c.Patch(ctx, "/orders/"+rest.PathID(id), patch, nil), "Order", "order")
}
