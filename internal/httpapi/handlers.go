// Package httpapi is the HTTP surface: middleware, routing, and one
// pipeline per endpoint (gate, validate, authorize, aggregate, respond).
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/access"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/auth"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/journal"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/notify"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/obs"
)

const (
	serviceName  = "merchantapi"
	apiPrefix    = "/api/v1"
	maxBodyBytes = 1 << 20
)

// Pinger is anything readiness can ping, e.g. the notification bus.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks the optional dependencies the process was started with.
type ReadyProbe struct {
	DB  *sql.DB
	Bus Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Bus != nil {
		return rp.Bus.Ping(ctx)
	}
	return nil
}

// Deps wires the API.
type Deps struct {
	Services     *collab.Services
	Verifier     *auth.Verifier
	Access       access.Checker
	Bus          *notify.Bus
	Journal      *journal.Recorder
	Ready        ReadyProbe
	Version      string
	FunctionsKey string
	RateBurst    int
	RatePerSec   int
	Now          func() time.Time
}

// API is the HTTP layer.
type API struct {
	mux          *http.ServeMux
	svc          *collab.Services
	verifier     *auth.Verifier
	access       access.Checker
	bus          *notify.Bus
	journal      *journal.Recorder
	readyProbe   ReadyProbe
	version      string
	functionsKey string
	rateBurst    int
	ratePerSec   int
	now          func() time.Time
}

func New(d Deps) *API {
	a := &API{
		mux:          http.NewServeMux(),
		svc:          d.Services,
		verifier:     d.Verifier,
		access:       d.Access,
		bus:          d.Bus,
		journal:      d.Journal,
		readyProbe:   d.Ready,
		version:      d.Version,
		functionsKey: d.FunctionsKey,
		rateBurst:    d.RateBurst,
		ratePerSec:   d.RatePerSec,
		now:          d.Now,
	}
	if a.bus == nil {
		a.bus = notify.NewBus(nil)
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 50
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 25
	}
	a.routes()
	return a
}

func (a *API) routes() {
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	v1 := func(pattern string, m methods) { a.mux.Handle(apiPrefix+pattern, m) }

	v1("/login", methods{http.MethodPost: a.login})
	v1("/users/me", methods{http.MethodGet: a.me})
	v1("/countries", methods{http.MethodGet: a.countries})

	v1("/merchants", methods{http.MethodPost: a.createMerchant})
	v1("/merchants/{merchantID}", methods{
		http.MethodGet:    a.getMerchant,
		http.MethodPatch:  a.patchMerchant,
		http.MethodDelete: a.deleteMerchant,
	})
	v1("/merchants/{merchantID}/invite", methods{http.MethodPost: a.inviteToMerchant})
	v1("/merchants/{merchantID}/users/{userID}", methods{http.MethodDelete: a.removeMerchantUser})
	v1("/merchants/{merchantID}/bank-accounts", methods{http.MethodPost: a.addBankAccount})
	v1("/merchants/{merchantID}/sales-persons", methods{http.MethodPost: a.addSalesPerson})
	v1("/merchants/{merchantID}/price-plan", methods{http.MethodPost: a.updatePricePlan})
	v1("/merchants/{merchantID}/payment-provider", methods{http.MethodGet: a.getPaymentProvider})
	v1("/merchants/{merchantID}/business-units", methods{http.MethodGet: a.listBusinessUnits})
	v1("/merchants/{merchantID}/statistics", methods{http.MethodGet: a.merchantStatistics})

	v1("/balance-accounts", methods{http.MethodPost: a.createBalanceAccount})
	v1("/balance-accounts/{id}", methods{http.MethodGet: a.getBalanceAccount})

	v1("/business-units", methods{http.MethodPost: a.createBusinessUnit})
	v1("/business-units/{id}", methods{
		http.MethodGet:    a.getBusinessUnit,
		http.MethodPatch:  a.patchBusinessUnit,
		http.MethodDelete: a.deleteBusinessUnit,
	})
	v1("/business-units/{id}/point-of-services", methods{http.MethodPost: a.addPointOfService})

	v1("/point-of-services/{id}", methods{http.MethodGet: a.getPointOfService})
	v1("/point-of-services/{id}/availability", methods{http.MethodPatch: a.setAvailability})
	v1("/point-of-services/{id}/components", methods{http.MethodGet: a.getComponents})
	v1("/point-of-services/{id}/modules", methods{http.MethodGet: a.getModules})

	v1("/partner-networks/{id}", methods{http.MethodGet: a.getPartnerNetwork})
	v1("/partner-networks/{id}/members", methods{http.MethodPost: a.addPartnerNetworkMember})

	v1("/products", methods{http.MethodPost: a.createProduct})
	v1("/products/{id}", methods{
		http.MethodGet:    a.getProduct,
		http.MethodDelete: a.deleteProduct,
	})

	v1("/accounts/{id}", methods{http.MethodGet: a.getAccount})
	v1("/retail-transactions/{id}", methods{http.MethodGet: a.getRetailTransaction})
	v1("/orders/{id}/status", methods{http.MethodPatch: a.setOrderStatus})
	v1("/webshops/{id}", methods{http.MethodGet: a.getWebshop})

	a.mux.HandleFunc("/", routeNotFound)
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = FunctionsKey(h, a.functionsKey)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
		"routes":  apiPrefix,
	})
}

// methods dispatches on the request method.
type methods map[string]http.HandlerFunc

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	allowed := make([]string, 0, len(m))
	for k := range m {
		allowed = append(allowed, k)
	}
	sort.Strings(allowed)
	methodNotAllowed(w, r, allowed...)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, code int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(raw)
}

// writeError renders a taxonomy error with HTTP status = code.
func writeError(w http.ResponseWriter, r *http.Request, e *apierr.Error) {
	if rid := obs.RequestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, e.Code, e.Envelope())
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, apierr.New(http.StatusMethodNotAllowed, apierr.ReasonMethodNotAllowed,
		"The "+r.Method+" method is not supported on this resource."))
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apierr.New(http.StatusNotFound, apierr.ReasonRouteNotFound,
		"The requested route does not exist."))
}
