// Package collabtest is an in-memory stand-in for every collaborator
// service. One httptest server answers all routes; documents are kept as
// JSON objects per collection and every write is counted so tests can
// assert that a rejected request issued none.
package collabtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/config"
)

// Collections.
const (
	Users               = "users"
	Merchants           = "merchants"
	BusinessUnits       = "business-units"
	PricePlans          = "priceplans"
	MerchantPricePlans  = "merchant-priceplan"
	MerchantLogs        = "merchant-log"
	MerchantBillings    = "merchant-billing"
	Webshops            = "webshops"
	Countries           = "countries"
	BalanceAccounts     = "balance-accounts"
	PartnerNetworks     = "partner-networks"
	Vouchers            = "vouchers"
	Products            = "products"
	PointOfServices     = "point-of-services"
	Modules             = "modules"
	Components          = "components"
	Accounts            = "accounts"
	AccountTransactions = "account-transactions"
	RetailTransactions  = "retail-transaction"
	Orders              = "orders"
)

type doc = map[string]any

// Fake holds the collaborator state.
type Fake struct {
	mu     sync.Mutex
	docs   map[string]map[string]doc
	writes map[string]int
	fail   map[string]int
	logins map[string]login
	mux    *http.ServeMux
}

type login struct {
	password string
	token    string
}

// New returns an empty fake.
func New() *Fake {
	f := &Fake{
		docs:   map[string]map[string]doc{},
		writes: map[string]int{},
		fail:   map[string]int{},
		logins: map[string]login{},
		mux:    http.NewServeMux(),
	}
	f.routes()
	return f
}

// Start serves the fake until the test ends.
func (f *Fake) Start(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv
}

// Services starts the fake and returns clients pointed at it.
func (f *Fake) Services(t testing.TB) *collab.Services {
	t.Helper()
	srv := f.Start(t)
	svc := config.Service{BaseURL: srv.URL, APIKey: "test-key"}
	s, err := collab.New(config.Services{
		Identity: svc, Merchant: svc, Voucher: svc,
		Product: svc, Device: svc, Order: svc,
	}, 0)
	if err != nil {
		t.Fatalf("collab.New: %v", err)
	}
	return s
}

// Put stores v (any JSON-encodable value with an "_id") in collection.
func (f *Fake) Put(collection string, v any) {
	d := toDoc(v)
	id, _ := d["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		d["_id"] = id
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coll(collection)[id] = d
}

// Get decodes the stored document into out and reports whether it exists.
func (f *Fake) Get(collection, id string, out any) bool {
	f.mu.Lock()
	d, ok := f.coll(collection)[id]
	var raw []byte
	if ok {
		raw, _ = json.Marshal(d)
	}
	f.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Has reports whether id exists in collection.
func (f *Fake) Has(collection, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.coll(collection)[id]
	return ok
}

// All returns the documents of collection ordered by id.
func (f *Fake) All(collection string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(collection, nil)
}

// Writes counts POST, PATCH and DELETE calls across every collection.
func (f *Fake) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.writes {
		n += c
	}
	return n
}

// WritesTo counts writes to one collection.
func (f *Fake) WritesTo(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[collection]
}

// Fail makes every call matching "METHOD /collection" answer status.
func (f *Fake) Fail(method, collection string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method+" "+collection] = status
}

// SetLogin registers credentials accepted by POST /login.
func (f *Fake) SetLogin(email, password, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins[strings.ToLower(email)] = login{password: password, token: token}
}

func (f *Fake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-functions-key") == "" {
		writeJSON(w, http.StatusUnauthorized, doc{"code": 401, "description": "missing functions key"})
		return
	}
	seg := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)[0]
	f.mu.Lock()
	status := f.fail[r.Method+" "+seg]
	f.mu.Unlock()
	if status != 0 {
		writeJSON(w, status, doc{"code": status, "description": "injected failure"})
		return
	}
	f.mux.ServeHTTP(w, r)
}

func (f *Fake) routes() {
	crud := func(collection string) {
		base := "/" + collection
		f.mux.HandleFunc("GET "+base+"/{id}", f.get(collection))
		f.mux.HandleFunc("POST "+base, f.create(collection))
		f.mux.HandleFunc("PATCH "+base+"/{id}", f.patch(collection))
		f.mux.HandleFunc("DELETE "+base+"/{id}", f.remove(collection))
	}
	for _, c := range []string{Users, Merchants, BusinessUnits, PricePlans, Webshops,
		BalanceAccounts, PartnerNetworks, Products, PointOfServices, Accounts, RetailTransactions, Orders} {
		crud(c)
	}
	for _, c := range []string{MerchantPricePlans, MerchantLogs, MerchantBillings} {
		f.mux.HandleFunc("POST /"+c, f.create(c))
	}

	f.mux.HandleFunc("GET /users/{email}/user", f.userByEmail)
	f.mux.HandleFunc("POST /login", f.login)
	f.mux.HandleFunc("GET /business-units", f.listBy(BusinessUnits, "merchantID"))
	f.mux.HandleFunc("GET /vouchers", f.listBy(Vouchers, "issuerMerchantID"))
	f.mux.HandleFunc("GET /modules", f.listBy(Modules, "pointOfServiceID"))
	f.mux.HandleFunc("GET /components-by-pointofservice/{id}", f.components)
	f.mux.HandleFunc("GET /countries", f.listBy(Countries, ""))
	f.mux.HandleFunc("GET /account-transactions", f.accountTransactions)
}

func (f *Fake) get(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		d, ok := f.coll(collection)[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (f *Fake) create(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var d doc
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			writeJSON(w, http.StatusBadRequest, doc{"code": 400, "description": err.Error()})
			return
		}
		id, _ := d["_id"].(string)
		if id == "" {
			id = uuid.NewString()
			d["_id"] = id
		}
		f.mu.Lock()
		f.coll(collection)[id] = d
		f.writes[collection]++
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, d)
	}
}

// patch merges top-level keys, as the collaborators do.
func (f *Fake) patch(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p doc
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, doc{"code": 400, "description": err.Error()})
			return
		}
		f.mu.Lock()
		d, ok := f.coll(collection)[r.PathValue("id")]
		if ok {
			for k, v := range p {
				d[k] = v
			}
			f.writes[collection]++
		}
		f.mu.Unlock()
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, doc{"code": 200, "description": "Successfully updated the document"})
	}
}

func (f *Fake) remove(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		_, ok := f.coll(collection)[id]
		if ok {
			delete(f.coll(collection), id)
			f.writes[collection]++
		}
		f.mu.Unlock()
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, doc{"code": 200, "description": "Successfully deleted the document"})
	}
}

func (f *Fake) listBy(collection, field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var match func(doc) bool
		if field != "" {
			want := r.URL.Query().Get(field)
			match = func(d doc) bool { return d[field] == want }
		}
		f.mu.Lock()
		out := f.list(collection, match)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	}
}

func (f *Fake) components(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	out := f.list(Components, func(d doc) bool { return d["pointOfServiceID"] == id })
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *Fake) accountTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	merchantID, from, to := q.Get("merchantID"), q.Get("fromDate"), q.Get("toDate")
	f.mu.Lock()
	out := f.list(AccountTransactions, func(d doc) bool {
		date, _ := d["transactionDate"].(string)
		if len(date) > 10 {
			date = date[:10]
		}
		return d["merchantID"] == merchantID && date >= from && date <= to
	})
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *Fake) userByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(r.PathValue("email"))
	f.mu.Lock()
	out := f.list(Users, func(d doc) bool {
		e, _ := d["email"].(string)
		return strings.ToLower(e) == email
	})
	f.mu.Unlock()
	if len(out) == 0 {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, out[0])
}

func (f *Fake) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	l, ok := f.logins[strings.ToLower(req.Email)]
	f.mu.Unlock()
	if !ok || l.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, doc{
			"code":         401,
			"description":  "Invalid email or password.",
			"reasonPhrase": "UserNotAuthenticatedError",
		})
		return
	}
	writeJSON(w, http.StatusOK, doc{"token": l.token})
}

// coll must be called with mu held.
func (f *Fake) coll(name string) map[string]doc {
	c, ok := f.docs[name]
	if !ok {
		c = map[string]doc{}
		f.docs[name] = c
	}
	return c
}

// list must be called with mu held.
func (f *Fake) list(collection string, match func(doc) bool) []map[string]any {
	out := []map[string]any{}
	for _, d := range f.coll(collection) {
		if match == nil || match(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i]["_id"].(string)
		b, _ := out[j]["_id"].(string)
		return a < b
	})
	return out
}

func toDoc(v any) doc {
	if d, ok := v.(map[string]any); ok {
		cp := make(doc, len(d))
		for k, val := range d {
			cp[k] = val
		}
		return cp
	}
	raw, err := json.Marshal(v)
	if err != nil {
		panic("collabtest: " + err.Error())
	}
	var d doc
	if err := json.Unmarshal(raw, &d); err != nil {
		panic("collabtest: " + err.Error())
	}
	return d
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, doc{"code": 404, "description": "The requested document doesn't exist."})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
