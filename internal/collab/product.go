package collab

import (
	"context"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab/rest"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
)

// Product is the product service.
type Product struct{ c *rest.Client }

func (s *Product) Product(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := s.c.Get(ctx, "/products/"+rest.PathID(id), nil, &p)
	return p, notFound(err, "Product", "product")
}

func (s *Product) CreateProduct(ctx context.Context, body map[string]any) (domain.Product, error) {
	var out domain.Product
	err := s.c.Post(ctx, "/products", body, &out)
	return out, err
}

func (s *Product) DeleteProduct(ctx context.Context, id string) error {
	return notFound(s.c.Delete(ctx, "/products/"+rest.PathID(id), nil), "Product", "product")
}
