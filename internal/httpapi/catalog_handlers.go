package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/access"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/validate"
)

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, route{op: "login", public: true},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.Required(x.body, "login", "email", "password"); err != nil {
				return err
			}
			return validate.Email("email", x.str("email"))
		}),
		step("login", func(ctx context.Context, x *exchange) error {
			password, _ := x.body["password"].(string)
			res, err := a.svc.Identity.Login(ctx, collab.LoginRequest{
				Email:    strings.ToLower(x.str("email")),
				Password: password,
			})
			if err != nil {
				return err
			}
			if res.Token == "" {
				return apierr.NotAuthenticated("")
			}
			x.reply(res)
			return nil
		}),
	)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, route{op: "user.me"},
		a.identity(),
		// Typed fields only; the identity record carries internal fields.
		step("respond", func(_ context.Context, x *exchange) error {
			x.result = x.user
			return nil
		}),
	)
}

func (a *API) countries(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, route{op: "countries.list"},
		step("respond", func(ctx context.Context, x *exchange) error {
			list, err := a.svc.Merchant.Countries(ctx)
			if err != nil {
				return err
			}
			x.reply(list)
			return nil
		}),
	)
}

// --- products ---

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, route{op: "product.create"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.Required(x.body, "product", "productName", "issuerMerchantID"); err != nil {
				return err
			}
			if err := rejectFields(x.body, "_id"); err != nil {
				return err
			}
			return validate.UUID("issuerMerchantID", x.str("issuerMerchantID"))
		}),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			m, err := a.svc.Merchant.Merchant(ctx, x.str("issuerMerchantID"))
			if err != nil {
				return err
			}
			return a.access.Authorize(x.user, m, "", denied(deniedMerchant))
		}),
		step("create-product", func(ctx context.Context, x *exchange) error {
			doc := x.bodyCopy()
			doc["_id"] = uuid.NewString()
			if _, ok := doc["isEnabled"]; !ok {
				doc["isEnabled"] = true
			}
			doc["createdDate"] = a.timestamp()
			p, err := a.svc.Product.CreateProduct(ctx, doc)
			if err != nil {
				return err
			}
			x.doc(p)
			return nil
		}),
	)
}

func (a *API) authorizeProduct(id, role string, dst *domain.Product) stage {
	return step("authorize", func(ctx context.Context, x *exchange) error {
		p, err := a.svc.Product.Product(ctx, id)
		if err != nil {
			return err
		}
		if err := a.access.Authorize(x.user, p, role, denied(deniedProduct)); err != nil {
			return err
		}
		*dst = p
		return nil
	})
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var p domain.Product
	a.serve(w, r, route{op: "product.get"},
		a.uuids("productID", id),
		a.identity(),
		a.authorizeProduct(id, "", &p),
		step("respond", func(_ context.Context, x *exchange) error {
			x.doc(p)
			return nil
		}),
	)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var p domain.Product
	a.serve(w, r, route{op: "product.delete"},
		a.uuids("productID", id),
		a.identity(),
		a.authorizeProduct(id, access.RoleAdmin, &p),
		step("delete-product", func(ctx context.Context, x *exchange) error {
			return a.svc.Product.DeleteProduct(ctx, p.ID)
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully deleted the specified product")
			return nil
		}),
	)
}

// --- order service ---

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a.serve(w, r, route{op: "account.get"},
		a.uuids("accountID", id),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			acc, err := a.svc.Order.Account(ctx, id)
			if err != nil {
				return err
			}
			if err := a.access.Authorize(x.user, acc, "", denied(deniedAccount)); err != nil {
				return err
			}
			x.doc(acc)
			return nil
		}),
	)
}

func (a *API) getRetailTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a.serve(w, r, route{op: "retail-transaction.get"},
		a.uuids("retailTransactionID", id),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			tx, err := a.svc.Order.RetailTransaction(ctx, id)
			if err != nil {
				return err
			}
			if err := a.access.Authorize(x.user, tx, "", denied(deniedRetail)); err != nil {
				return err
			}
			x.doc(tx)
			return nil
		}),
	)
}

func (a *API) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var (
		o      domain.Order
		status string
	)
	a.serve(w, r, route{op: "order.status"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("orderID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "order status", "orderStatus"); err != nil {
				return err
			}
			status = x.str("orderStatus")
			for _, s := range domain.OrderStatusCodes {
				if s == status {
					return nil
				}
			}
			return apierr.StatusCodeNotValid(fmt.Sprintf("The order status %q is not valid. Allowed values: %s.",
				status, strings.Join(domain.OrderStatusCodes, ", ")))
		}),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			var err error
			o, err = a.svc.Order.Order(ctx, id)
			if err != nil {
				return err
			}
			return a.access.Authorize(x.user, o, "", denied(deniedOrder))
		}),
		step("patch-order", func(ctx context.Context, x *exchange) error {
			return a.svc.Order.PatchOrder(ctx, o.ID, map[string]any{
				"orderStatus": status,
				"updatedDate": a.timestamp(),
			})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully updated the order status")
			return nil
		}),
	)
}

// getWebshop shows a disabled webshop only to its owner.
func (a *API) getWebshop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a.serve(w, r, route{op: "webshop.get"},
		a.uuids("webshopID", id),
		a.identity(),
		step("authorize", func(ctx context.Context, x *exchange) error {
			ws, err := a.svc.Merchant.Webshop(ctx, id)
			if err != nil {
				return err
			}
			owner := a.access.Allowed(x.user, ws.Grants(), "")
			if !owner && !ws.IsEnabled {
				return apierr.NotEnabled("The webshop is not enabled.")
			}
			x.doc(ws)
			return nil
		}),
	)
}
