package collab

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab/rest"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
)

// Device is the device service: points of service, modules and components.
type Device struct{ c *rest.Client }

func (s *Device) PointOfService(ctx context.Context, id string) (domain.PointOfService, error) {
	var p domain.PointOfService
	err := s.c.Get(ctx, "/point-of-services/"+rest.PathID(id), nil, &p)
	return p, notFound(err, "PointOfService", "point-of-service")
}

func (s *Device) PatchPointOfService(ctx context.Context, id string, patch map[string]any) error {
	return notFound(s.c.Patch(ctx, "/point-of-services/"+rest.PathID(id), patch, nil), "PointOfService", "point-of-service")
}

func (s *Device) Modules(ctx context.Context, pointOfServiceID string) (json.RawMessage, error) {
	return s.c.GetRaw(ctx, "/modules", url.Values{"pointOfServiceID": {pointOfServiceID}})
}

func (s *Device) Components(ctx context.Context, pointOfServiceID string) (json.RawMessage, error) {
	return s.c.GetRaw(ctx, "/components-by-pointofservice/"+rest.PathID(pointOfServiceID), nil)
}
