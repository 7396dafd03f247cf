// Package collab holds typed clients for the collaborator services. Each
// method is one outbound call; sequencing belongs to the endpoints.
package collab

import (
	"errors"
	"fmt"
	"time"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab/rest"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/config"
)

// Services bundles every collaborator client.
type Services struct {
	Identity *Identity
	Merchant *Merchant
	Voucher  *Voucher
	Product  *Product
	Device   *Device
	Order    *Order
}

// New builds the clients from configuration.
func New(cfg config.Services, timeout time.Duration, opts ...rest.Option) (*Services, error) {
	opts = append([]rest.Option{rest.WithTimeout(timeout)}, opts...)
	build := func(name string, svc config.Service) (*rest.Client, error) {
		c, err := rest.New(name, svc.BaseURL, svc.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("collab: %w", err)
		}
		return c, nil
	}

	identity, err := build("identity", cfg.Identity)
	if err != nil {
		return nil, err
	}
	merchant, err := build("merchant", cfg.Merchant)
	if err != nil {
		return nil, err
	}
	voucher, err := build("voucher", cfg.Voucher)
	if err != nil {
		return nil, err
	}
	product, err := build("product", cfg.Product)
	if err != nil {
		return nil, err
	}
	device, err := build("device", cfg.Device)
	if err != nil {
		return nil, err
	}
	order, err := build("order", cfg.Order)
	if err != nil {
		return nil, err
	}
	return &Services{
		Identity: &Identity{c: identity},
		Merchant: &Merchant{c: merchant},
		Voucher:  &Voucher{c: voucher},
		Product:  &Product{c: product},
		Device:   &Device{c: device},
		Order:    &Order{c: order},
	}, nil
}

// notFound replaces a collaborator 404 with the resource's own error.
func notFound(err error, kind, label string) error {
	if errors.Is(err, rest.ErrNotFound) {
		return apierr.NotFound(kind, label).Wrap(err)
	}
	return err
}

// isNotFound reports whether a lookup missed.
func isNotFound(err error) bool {
	return errors.Is(err, rest.ErrNotFound)
}
