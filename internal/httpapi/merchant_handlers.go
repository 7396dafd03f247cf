package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/access"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/ids"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/notify"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/validate"
)

// merchantFields may only be changed by dedicated endpoints.
var merchantFields = []string{"_id", "balanceAccounts", "bankAccounts", "salesPersons", "pricePlan", "paymentProviderAccounts", "createdDate"}

// authorizeMerchant loads the merchant and checks the caller's link to it.
func (a *API) authorizeMerchant(id string, role string, dst *domain.Merchant) stage {
	return step("authorize", func(ctx context.Context, x *exchange) error {
		m, err := a.svc.Merchant.Merchant(ctx, id)
		if err != nil {
			return err
		}
		msg := deniedMerchant
		if role == access.RoleAdmin {
			msg = deniedMerchantAdmin
		}
		if err := a.access.Authorize(x.user, m, role, denied(msg)); err != nil {
			return err
		}
		*dst = m
		return nil
	})
}

func (a *API) getMerchant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var m domain.Merchant
	a.serve(w, r, route{op: "merchant.get"},
		a.uuids("merchantID", id),
		a.identity(),
		a.authorizeMerchant(id, "", &m),
		step("respond", func(_ context.Context, x *exchange) error {
			x.doc(m)
			return nil
		}),
	)
}

func (a *API) patchMerchant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var m domain.Merchant
	a.serve(w, r, route{op: "merchant.update"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("merchantID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "merchant"); err != nil {
				return err
			}
			return rejectFields(x.body, merchantFields...)
		}),
		a.identity(),
		a.authorizeMerchant(id, access.RoleAdmin, &m),
		step("patch-merchant", func(ctx context.Context, x *exchange) error {
			patch := x.bodyCopy()
			patch["updatedDate"] = a.timestamp()
			return a.svc.Merchant.PatchMerchant(ctx, m.ID, patch)
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully updated the merchant")
			return nil
		}),
	)
}

// createMerchant provisions a merchant with its four balance accounts and
// links the caller as admin.
func (a *API) createMerchant(w http.ResponseWriter, r *http.Request) {
	var (
		merchantID = uuid.NewString()
		name       string
		currency   string
		accounts   = make([]domain.BalanceAccountRef, len(domain.BalanceAccountTypes))
	)
	a.serve(w, r, route{op: "merchant.create"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.Required(x.body, "merchant", "merchantName", "merchantCurrency"); err != nil {
				return err
			}
			if err := rejectFields(x.body, "_id", "balanceAccounts"); err != nil {
				return err
			}
			name = x.str("merchantName")
			currency = strings.ToUpper(x.str("merchantCurrency"))
			return nil
		}),
		a.identity(),
		step("create-merchant", func(ctx context.Context, x *exchange) error {
			now := a.timestamp()
			doc := x.bodyCopy()
			doc["_id"] = merchantID
			doc["merchantName"] = name
			doc["merchantCurrency"] = currency
			if x.str("payoutFrequency") == "" {
				doc["payoutFrequency"] = domain.DefaultPayoutFrequency
			}
			if _, ok := doc["isEnabled"]; !ok {
				doc["isEnabled"] = true
			}
			doc["balanceAccounts"] = []domain.BalanceAccountRef{}
			doc["createdDate"] = now
			doc["updatedDate"] = now
			_, err := a.svc.Merchant.CreateMerchant(ctx, doc)
			return err
		}),
		step("create-balance-accounts", func(ctx context.Context, x *exchange) error {
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(len(domain.BalanceAccountTypes))
			now := a.timestamp()
			for i, typ := range domain.BalanceAccountTypes {
				g.Go(func() error {
					acc := domain.BalanceAccount{
						ID:                 uuid.NewString(),
						BalanceAccountName: name + " " + typ,
						BalanceAccountType: typ,
						BalanceCurrency:    currency,
						IssuerMerchantID:   merchantID,
						OwnerID:            merchantID,
						IsEnabled:          true,
						CreatedDate:        now,
					}
					created, err := a.svc.Voucher.CreateBalanceAccount(gctx, acc)
					if err != nil {
						return err
					}
					if created.ID == "" {
						created.ID = acc.ID
					}
					accounts[i] = domain.BalanceAccountRef{
						BalanceAccountID:   created.ID,
						BalanceAccountName: acc.BalanceAccountName,
						BalanceAccountType: typ,
						BalanceCurrency:    currency,
					}
					return nil
				})
			}
			return g.Wait()
		}),
		step("link-balance-accounts", func(ctx context.Context, x *exchange) error {
			return a.svc.Merchant.PatchMerchant(ctx, merchantID, map[string]any{
				"balanceAccounts": accounts,
				"updatedDate":     a.timestamp(),
			})
		}),
		step("link-caller", func(ctx context.Context, x *exchange) error {
			links := append(append([]domain.MerchantLink(nil), x.user.Merchants...), domain.MerchantLink{
				MerchantID:   merchantID,
				MerchantName: name,
				Roles:        access.RoleAdmin,
			})
			return a.svc.Identity.PatchUser(ctx, x.user.ID, map[string]any{"merchants": links})
		}),
		step("merchant-log", func(ctx context.Context, x *exchange) error {
			return a.svc.Merchant.CreateMerchantLog(ctx, a.merchantLog(merchantID, x.user.ID, "create", "Merchant created"))
		}),
		step("respond", func(ctx context.Context, x *exchange) error {
			m, err := a.svc.Merchant.Merchant(ctx, merchantID)
			if err != nil {
				return err
			}
			x.doc(m)
			return nil
		}),
	)
}

func (a *API) deleteMerchant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var m domain.Merchant
	a.serve(w, r, route{op: "merchant.delete"},
		a.uuids("merchantID", id),
		a.identity(),
		a.authorizeMerchant(id, access.RoleAdmin, &m),
		step("check-vouchers", func(ctx context.Context, x *exchange) error {
			vouchers, err := a.svc.Voucher.VouchersByIssuer(ctx, m.ID)
			if err != nil {
				return err
			}
			if len(vouchers) > 0 {
				return apierr.VouchersLinked("The merchant has vouchers linked to it and cannot be deleted.")
			}
			return nil
		}),
		step("delete-merchant", func(ctx context.Context, x *exchange) error {
			return a.svc.Merchant.DeleteMerchant(ctx, m.ID)
		}),
		step("unlink-caller", func(ctx context.Context, x *exchange) error {
			return a.svc.Identity.PatchUser(ctx, x.user.ID, map[string]any{
				"merchants": x.user.WithoutMerchant(m.ID),
			})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully deleted the specified merchant")
			return nil
		}),
	)
}

// inviteToMerchant links an email to the merchant. Unknown emails get a
// fresh identity; the notification is sent without waiting for the bus.
func (a *API) inviteToMerchant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var (
		m       domain.Merchant
		email   string
		roles   string
		invitee domain.User
		found   bool
		invite  domain.MerchantInvite
	)
	a.serve(w, r, route{op: "merchant.invite"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("merchantID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "invite", "email"); err != nil {
				return err
			}
			email = strings.ToLower(x.str("email"))
			roles = x.str("roles")
			return validate.Email("email", email)
		}),
		a.identity(),
		a.authorizeMerchant(id, access.RoleAdmin, &m),
		step("lookup-invitee", func(ctx context.Context, x *exchange) error {
			var err error
			invitee, found, err = a.svc.Identity.UserByEmail(ctx, email)
			if err != nil {
				return err
			}
			if found {
				if _, linked := invitee.Link(m.ID); linked {
					return apierr.MerchantLinked("The user is already linked to the merchant.")
				}
			}
			invite = domain.MerchantInvite{
				MerchantID:   m.ID,
				MerchantName: m.MerchantName,
				Roles:        roles,
				InviteCode:   ids.New(),
				InvitedBy:    x.user.Email,
				InviteDate:   a.timestamp(),
			}
			return nil
		}),
		step("record-invite", func(ctx context.Context, x *exchange) error {
			if !found {
				_, err := a.svc.Identity.CreateUser(ctx, domain.User{
					ID:              uuid.NewString(),
					Email:           email,
					Merchants:       []domain.MerchantLink{{MerchantID: m.ID, MerchantName: m.MerchantName, Roles: ""}},
					MerchantInvites: []domain.MerchantInvite{invite},
				})
				return err
			}
			// A pending invite for this merchant is replaced, not duplicated.
			invites := append([]domain.MerchantInvite(nil), invitee.MerchantInvites...)
			if invitee.HasInvite(m.ID) {
				invites = invites[:0]
				for _, inv := range invitee.MerchantInvites {
					if inv.MerchantID != m.ID {
						invites = append(invites, inv)
					}
				}
			}
			invites = append(invites, invite)
			return a.svc.Identity.PatchUser(ctx, invitee.ID, map[string]any{"merchantInvites": invites})
		}),
		step("notify", func(ctx context.Context, x *exchange) error {
			a.bus.Send(ctx, notify.Message{
				Type:     notify.TypeEmail,
				To:       email,
				Subject:  "You have been invited to " + m.MerchantName,
				Template: "merchant-invite",
				Data: map[string]any{
					"merchantID":   m.ID,
					"merchantName": m.MerchantName,
					"inviteCode":   invite.InviteCode,
					"invitedBy":    invite.InvitedBy,
					"newUser":      !found,
					"reinvite":     found && invitee.HasInvite(m.ID),
				},
			})
			x.ok("Successfully sent the invite to " + email)
			return nil
		}),
	)
}

func (a *API) removeMerchantUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	userID := r.PathValue("userID")
	var (
		m      domain.Merchant
		target domain.User
	)
	a.serve(w, r, route{op: "merchant.remove-user"},
		a.uuids("merchantID", id, "userID", userID),
		a.identity(),
		a.authorizeMerchant(id, access.RoleAdmin, &m),
		step("lookup-user", func(ctx context.Context, x *exchange) error {
			u, err := a.svc.Identity.Member(ctx, userID)
			if err != nil {
				return err
			}
			if _, linked := u.Link(m.ID); !linked {
				return apierr.New(http.StatusNotFound, "UserNotFoundError", "The user specified is not linked to the merchant.")
			}
			target = u
			return nil
		}),
		step("unlink-user", func(ctx context.Context, x *exchange) error {
			return a.svc.Identity.PatchUser(ctx, target.ID, map[string]any{
				"merchants": target.WithoutMerchant(m.ID),
			})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully removed the user from the merchant")
			return nil
		}),
	)
}

func (a *API) addBankAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var (
		m       domain.Merchant
		account domain.BankAccount
	)
	a.serve(w, r, route{op: "merchant.add-bank-account"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("merchantID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "bank account", "account"); err != nil {
				return err
			}
			return x.decode(&account)
		}),
		a.identity(),
		a.authorizeMerchant(id, access.RoleAdmin, &m),
		step("guard", func(context.Context, *exchange) error {
			if m.HasBankAccount(account.Account) {
				return apierr.AlreadyExist("BankAccount", "The bank account already exists for this merchant.")
			}
			return nil
		}),
		step("patch-merchant", func(ctx context.Context, x *exchange) error {
			list := make([]domain.BankAccount, 0, len(m.BankAccounts)+1)
			for _, b := range m.BankAccounts {
				if account.IsDefault {
					b.IsDefault = false
				}
				list = append(list, b)
			}
			list = append(list, account)
			return a.svc.Merchant.PatchMerchant(ctx, m.ID, map[string]any{
				"bankAccounts": list,
				"updatedDate":  a.timestamp(),
			})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully added the bank account to the merchant")
			return nil
		}),
	)
}

func (a *API) addSalesPerson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var (
		m      domain.Merchant
		person domain.SalesPerson
	)
	a.serve(w, r, route{op: "merchant.add-sales-person"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("merchantID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "sales person", "salesPersonCode"); err != nil {
				return err
			}
			if err := x.decode(&person); err != nil {
				return err
			}
			if person.Email != "" {
				return validate.Email("email", person.Email)
			}
			return nil
		}),
		a.identity(),
		a.authorizeMerchant(id, access.RoleAdmin, &m),
		step("guard", func(context.Context, *exchange) error {
			if m.HasSalesPerson(person.SalesPersonCode) {
				return apierr.AlreadyExist("SalesPersons", "The sales person code already exists for this merchant.")
			}
			return nil
		}),
		step("patch-merchant", func(ctx context.Context, x *exchange) error {
			list := append(append([]domain.SalesPerson(nil), m.SalesPersons...), person)
			return a.svc.Merchant.PatchMerchant(ctx, m.ID, map[string]any{
				"salesPersons": list,
				"updatedDate":  a.timestamp(),
			})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully added the sales person to the merchant")
			return nil
		}),
	)
}

// updatePricePlan patches the merchant and then records the plan and the
// billing start. A failure after the patch leaves it applied; the journal
// shows which step stopped.
func (a *API) updatePricePlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var (
		m      domain.Merchant
		planID string
		plan   domain.PricePlan
	)
	a.serve(w, r, route{op: "merchant.update-price-plan"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("merchantID", id); err != nil {
				return err
			}
			if err := validate.Required(x.body, "price plan", "pricePlanID"); err != nil {
				return err
			}
			planID = x.str("pricePlanID")
			return validate.UUID("pricePlanID", planID)
		}),
		a.identity(),
		a.authorizeMerchant(id, access.RoleAdmin, &m),
		step("load-price-plan", func(ctx context.Context, x *exchange) error {
			var err error
			plan, err = a.svc.Merchant.PricePlan(ctx, planID)
			return err
		}),
		step("patch-merchant", func(ctx context.Context, x *exchange) error {
			return a.svc.Merchant.PatchMerchant(ctx, m.ID, map[string]any{
				"pricePlan":   domain.PricePlanRef{PricePlanID: plan.ID, PricePlanName: plan.PricePlanName},
				"updatedDate": a.timestamp(),
			})
		}),
		step("merchant-priceplan", func(ctx context.Context, x *exchange) error {
			return a.svc.Merchant.CreateMerchantPricePlan(ctx, domain.MerchantPricePlan{
				ID:          uuid.NewString(),
				MerchantID:  m.ID,
				PricePlanID: plan.ID,
				StartDate:   a.today(),
			})
		}),
		step("merchant-billing", func(ctx context.Context, x *exchange) error {
			return a.svc.Merchant.CreateMerchantBilling(ctx, domain.MerchantBilling{
				ID:               uuid.NewString(),
				MerchantID:       m.ID,
				PricePlanID:      plan.ID,
				PricePlanName:    plan.PricePlanName,
				MonthlyFee:       plan.MonthlyFee,
				Currency:         plan.Currency,
				BillingStartDate: a.today(),
			})
		}),
		step("respond", func(_ context.Context, x *exchange) error {
			x.ok("Successfully updated the price plan of the merchant")
			return nil
		}),
	)
}

func (a *API) getPaymentProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var m domain.Merchant
	a.serve(w, r, route{op: "merchant.payment-provider"},
		a.uuids("merchantID", id),
		a.identity(),
		a.authorizeMerchant(id, "", &m),
		step("respond", func(_ context.Context, x *exchange) error {
			provider := x.query("paymentProvider")
			var out []domain.PaymentProviderAccount
			for _, p := range m.PaymentProviderAccounts {
				if !p.IsEnabled {
					continue
				}
				if provider != "" && !strings.EqualFold(p.PaymentProvider, provider) {
					continue
				}
				out = append(out, p)
			}
			if len(out) == 0 {
				return apierr.PaymentProviderNotFound("No payment provider account is linked to the merchant.")
			}
			x.reply(out)
			return nil
		}),
	)
}

func (a *API) listBusinessUnits(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var m domain.Merchant
	a.serve(w, r, route{op: "merchant.business-units"},
		a.uuids("merchantID", id),
		a.identity(),
		a.authorizeMerchant(id, "", &m),
		step("respond", func(ctx context.Context, x *exchange) error {
			list, err := a.svc.Merchant.BusinessUnits(ctx, m.ID)
			if err != nil {
				return err
			}
			x.reply(list)
			return nil
		}),
	)
}

func (a *API) merchantLog(merchantID, userID, action, description string) domain.MerchantLog {
	return domain.MerchantLog{
		ID:          uuid.NewString(),
		MerchantID:  merchantID,
		UserID:      userID,
		Action:      action,
		Description: description,
		CreatedDate: a.timestamp(),
	}
}
