package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/access"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/pipeline"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/validate"
)

// --- balance accounts ---

func (a *API) createBalanceAccount(w http.ResponseWriter, r *http.Request) {
	var (
		owner    domain.Merchant
		currency string
		created  domain.BalanceAccount
		ref      domain.BalanceAccountRef
	)
	a.serve(w, r, route{op: "balance-account.create"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.Required(x.body, "balance account",
				"balanceAccountType", "balanceCurrency", "issuerMerchantID", "ownerID"); err != nil {
				return err
			}
			if err := validate.UUIDs("issuerMerchantID", x.str("issuerMerchantID"), "ownerID", x.str("ownerID")); err != nil {
				return err
			}
			currency = strings.ToUpper(strings.TrimSpace(x.str("balanceCurrency")))
			return validate.OneOf("balanceAccountType", x.str("balanceAccountType"), domain.BalanceAccountTypes...)
		}),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			m, err := a.svc.Merchant.Merchant(ctx, x.str("ownerID"))
			if err != nil {
				return err
			}
			// The owner record is patched, so the caller must be linked to it;
			// a distinct issuer needs its own link.
			if err := a.access.Authorize(x.user, m, "", denied(deniedMerchant)); err != nil {
				return err
			}
			if issuer := x.str("issuerMerchantID"); issuer != m.ID {
				if err := a.access.RequireLink(x.user, issuer, "", denied(deniedMerchant)); err != nil {
					return err
				}
			}
			owner = m
			return nil
		}),
		step("guard", func(context.Context, *exchange) error {
			if owner.HasBalanceCurrency(currency) {
				return apierr.AlreadyExist("BalanceAccount", "A balance account with this currency already exists for the merchant.")
			}
			return nil
		}),
		step("create-balance-account", func(ctx context.Context, x *exchange) error {
			doc := x.bodyCopy()
			doc["_id"] = uuid.NewString()
			doc["balanceCurrency"] = currency
			doc["balanceAmount"] = 0
			if _, ok := doc["creditLimit"]; !ok {
				doc["creditLimit"] = 0
			}
			if _, ok := doc["isEnabled"]; !ok {
				doc["isEnabled"] = true
			}
			doc["createdDate"] = a.timestamp()
			var err error
			created, err = a.svc.Voucher.CreateBalanceAccount(ctx, doc)
			if err != nil {
				return err
			}
			if created.ID == "" {
				created.ID, _ = doc["_id"].(string)
			}
			ref = domain.BalanceAccountRef{
				BalanceAccountID:   created.ID,
				BalanceAccountName: x.str("balanceAccountName"),
				BalanceAccountType: x.str("balanceAccountType"),
				BalanceCurrency:    currency,
			}
			return nil
		}),
		step("link-merchant", func(ctx context.Context, x *exchange) error {
			list := append(append([]domain.BalanceAccountRef(nil), owner.BalanceAccounts...), ref)
			return a.svc.Merchant.PatchMerchant(ctx, owner.ID, map[string]any{
				"balanceAccounts": list,
				"updatedDate":     a.timestamp(),
			})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.doc(created)
			return nil
		}),
	)
}

func (a *API) getBalanceAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a.serve(w, r, route{op: "balance-account.get"},
		a.uuids("balanceAccountID", id),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			b, err := a.svc.Voucher.BalanceAccount(ctx, id)
			if err != nil {
				return err
			}
			if err := a.access.Authorize(x.user, b, "", denied(deniedBalanceAccount)); err != nil {
				return err
			}
			x.doc(b)
			return nil
		}),
	)
}

// --- business units ---

func (a *API) authorizeBusinessUnit(id string, dst *domain.BusinessUnit) stage {
	return step("authorize", func(ctx context.Context, x *exchange) error {
		b, err := a.svc.Merchant.BusinessUnit(ctx, id)
		if err != nil {
			return err
		}
		if err := a.access.Authorize(x.user, b, "", denied(deniedBusinessUnit)); err != nil {
			return err
		}
		*dst = b
		return nil
	})
}

func (a *API) createBusinessUnit(w http.ResponseWriter, r *http.Request) {
	var m domain.Merchant
	a.serve(w, r, route{op: "business-unit.create"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.Required(x.body, "business-unit", "businessUnitName", "merchantID"); err != nil {
				return err
			}
			if err := rejectFields(x.body, "_id", "pointOfServices"); err != nil {
				return err
			}
			return validate.UUID("merchantID", x.str("merchantID"))
		}),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			var err error
			m, err = a.svc.Merchant.Merchant(ctx, x.str("merchantID"))
			if err != nil {
				return err
			}
			return a.access.Authorize(x.user, m, "", denied(deniedMerchant))
		}),
		step("create-business-unit", func(ctx context.Context, x *exchange) error {
			doc := x.bodyCopy()
			doc["_id"] = uuid.NewString()
			doc["merchantName"] = m.MerchantName
			doc["pointOfServices"] = []domain.PointOfServiceRef{}
			doc["createdDate"] = a.timestamp()
			b, err := a.svc.Merchant.CreateBusinessUnit(ctx, doc)
			if err != nil {
				return err
			}
			x.doc(b)
			return nil
		}),
	)
}

// getBusinessUnit answers with a list: [] when the unit does not exist.
func (a *API) getBusinessUnit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a.serve(w, r, route{op: "business-unit.get"},
		a.uuids("businessUnitID", id),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			b, err := a.svc.Merchant.BusinessUnit(ctx, id)
			if errors.Is(err, apierr.NotFound("BusinessUnit", "")) {
				x.reply([]any{})
				return pipeline.Halt
			}
			if err != nil {
				return err
			}
			if err := a.access.Authorize(x.user, b, "", denied(deniedBusinessUnit)); err != nil {
				return err
			}
			if raw := b.Raw(); len(raw) > 0 {
				x.reply([]any{raw})
			} else {
				x.reply([]domain.BusinessUnit{b})
			}
			return nil
		}),
	)
}

func (a *API) patchBusinessUnit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var b domain.BusinessUnit
	a.serve(w, r, route{op: "business-unit.update"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("businessUnitID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "business-unit"); err != nil {
				return err
			}
			return rejectFields(x.body, "_id", "merchantID", "pointOfServices")
		}),
		a.identity(),
		a.authorizeBusinessUnit(id, &b),
		step("patch-business-unit", func(ctx context.Context, x *exchange) error {
			patch := x.bodyCopy()
			patch["updatedDate"] = a.timestamp()
			return a.svc.Merchant.PatchBusinessUnit(ctx, b.ID, patch)
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully updated the specified business-unit")
			return nil
		}),
	)
}

func (a *API) deleteBusinessUnit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var b domain.BusinessUnit
	a.serve(w, r, route{op: "business-unit.delete"},
		a.uuids("businessUnitID", id),
		a.identity(),
		a.authorizeBusinessUnit(id, &b),
		step("delete-business-unit", func(ctx context.Context, x *exchange) error {
			return a.svc.Merchant.DeleteBusinessUnit(ctx, b.ID)
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully deleted the specified business-unit")
			return nil
		}),
	)
}

func (a *API) addPointOfService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var (
		b     domain.BusinessUnit
		pos   domain.PointOfService
		posID string
	)
	a.serve(w, r, route{op: "business-unit.add-point-of-service"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("businessUnitID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "point-of-service", "pointOfServiceID"); err != nil {
				return err
			}
			posID = x.str("pointOfServiceID")
			return validate.UUID("pointOfServiceID", posID)
		}),
		a.identity(),
		a.authorizeBusinessUnit(id, &b),
		step("load-point-of-service", func(ctx context.Context, x *exchange) error {
			p, err := a.svc.Device.PointOfService(ctx, posID)
			if err != nil {
				return err
			}
			if err := a.access.Authorize(x.user, p, "", denied(deniedPointOfService)); err != nil {
				return err
			}
			pos = p
			return nil
		}),
		step("guard", func(context.Context, *exchange) error {
			if b.HasPointOfService(pos.ID) {
				return apierr.AlreadyExist("PointOfService", "The point-of-service is already linked to this business-unit.")
			}
			return nil
		}),
		step("patch-business-unit", func(ctx context.Context, x *exchange) error {
			list := append(append([]domain.PointOfServiceRef(nil), b.PointOfServices...), domain.PointOfServiceRef{
				PointOfServiceID:   pos.ID,
				PointOfServiceName: pos.PointOfServiceName,
			})
			return a.svc.Merchant.PatchBusinessUnit(ctx, b.ID, map[string]any{"pointOfServices": list})
		}),
		step("patch-point-of-service", func(ctx context.Context, x *exchange) error {
			return a.svc.Device.PatchPointOfService(ctx, pos.ID, map[string]any{"businessUnitID": b.ID})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully added the point-of-service to the business-unit")
			return nil
		}),
	)
}

// --- points of service ---

func (a *API) authorizePointOfService(id string, dst *domain.PointOfService) stage {
	return step("authorize", func(ctx context.Context, x *exchange) error {
		p, err := a.svc.Device.PointOfService(ctx, id)
		if err != nil {
			return err
		}
		if err := a.access.Authorize(x.user, p, "", denied(deniedPointOfService)); err != nil {
			return err
		}
		*dst = p
		return nil
	})
}

func (a *API) getPointOfService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var p domain.PointOfService
	a.serve(w, r, route{op: "point-of-service.get"},
		a.uuids("pointOfServiceID", id),
		a.identity(),
		a.authorizePointOfService(id, &p),
		step("respond", func(_ context.Context, x *exchange) error {
			x.doc(p)
			return nil
		}),
	)
}

func (a *API) setAvailability(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var (
		p            domain.PointOfService
		availability string
	)
	a.serve(w, r, route{op: "point-of-service.availability"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("pointOfServiceID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "availability", "availability"); err != nil {
				return err
			}
			availability = x.str("availability")
			return validate.OneOf("availability", availability,
				domain.AvailabilityOperative, domain.AvailabilityInoperative)
		}),
		a.identity(),
		a.authorizePointOfService(id, &p),
		step("patch-point-of-service", func(ctx context.Context, x *exchange) error {
			return a.svc.Device.PatchPointOfService(ctx, p.ID, map[string]any{
				"availability": availability,
				"updatedDate":  a.timestamp(),
			})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully updated the availability of the point-of-service")
			return nil
		}),
	)
}

func (a *API) getComponents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var p domain.PointOfService
	a.serve(w, r, route{op: "point-of-service.components"},
		a.uuids("pointOfServiceID", id),
		a.identity(),
		a.authorizePointOfService(id, &p),
		step("respond", func(ctx context.Context, x *exchange) error {
			list, err := a.svc.Device.Components(ctx, p.ID)
			if err != nil {
				return err
			}
			x.reply(list)
			return nil
		}),
	)
}

func (a *API) getModules(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var p domain.PointOfService
	a.serve(w, r, route{op: "point-of-service.modules"},
		a.uuids("pointOfServiceID", id),
		a.identity(),
		a.authorizePointOfService(id, &p),
		step("respond", func(ctx context.Context, x *exchange) error {
			list, err := a.svc.Device.Modules(ctx, p.ID)
			if err != nil {
				return err
			}
			x.reply(list)
			return nil
		}),
	)
}

// --- partner networks ---

func (a *API) getPartnerNetwork(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a.serve(w, r, route{op: "partner-network.get"},
		a.uuids("partnerNetworkID", id),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			n, err := a.svc.Voucher.PartnerNetwork(ctx, id)
			if err != nil {
				return err
			}
			if err := a.access.Authorize(x.user, n, "", denied(deniedNetwork)); err != nil {
				return err
			}
			x.doc(n)
			return nil
		}),
	)
}

func (a *API) addPartnerNetworkMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var (
		network  domain.PartnerNetwork
		member   domain.Merchant
		memberID string
	)
	a.serve(w, r, route{op: "partner-network.add-member"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("partnerNetworkID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "partner network member", "merchantID"); err != nil {
				return err
			}
			memberID = x.str("merchantID")
			return validate.UUID("merchantID", memberID)
		}),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			n, err := a.svc.Voucher.PartnerNetwork(ctx, id)
			if err != nil {
				return err
			}
			if err := a.access.Authorize(x.user, access.Grants(n.AdminGrants()), access.RoleAdmin, denied(deniedNetworkAdmin)); err != nil {
				return err
			}
			network = n
			return nil
		}),
		step("load-member", func(ctx context.Context, x *exchange) error {
			var err error
			member, err = a.svc.Merchant.Merchant(ctx, memberID)
			return err
		}),
		step("guard", func(context.Context, *exchange) error {
			if network.HasMember(member.ID) {
				return apierr.AlreadyExist("PartnerNetworkMember", "The merchant is already a member of the partner network.")
			}
			return nil
		}),
		step("patch-partner-network", func(ctx context.Context, x *exchange) error {
			roles := x.str("roles")
			if roles == "" {
				roles = access.RoleView
			}
			list := append(append([]domain.Right(nil), network.PartnerNetworkMembers...), domain.Right{
				MerchantID:   member.ID,
				MerchantName: member.MerchantName,
				Roles:        strings.ToLower(roles),
			})
			return a.svc.Voucher.PatchPartnerNetwork(ctx, network.ID, map[string]any{"partnerNetworkMembers": list})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully added the merchant to the partner network")
			return nil
		}),
	)
}
