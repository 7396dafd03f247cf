package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/auth"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab/collabtest"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/journal"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/notify"
)

const testSecret = "test-secret"

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	t          *testing.T
	fake       *collabtest.Fake
	api        *API
	srv        *httptest.Server
	sent       *notify.Recorder
	bus        *notify.Bus
	steps      *journal.Memory
	merchantID string
	userID     string
	token      string
}

// newTestEnv serves the API against the in-memory collaborators with one
// merchant and one user linked to it as admin.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := collabtest.New()
	verifier, err := auth.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	sent := &notify.Recorder{}
	bus := notify.NewBus(sent)
	steps := journal.NewMemory()

	api := New(Deps{
		Services:   fake.Services(t),
		Verifier:   verifier,
		Bus:        bus,
		Journal:    journal.NewRecorder(steps),
		Version:    "test",
		RateBurst:  1000,
		RatePerSec: 1000,
		Now:        func() time.Time { return testNow },
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	e := &testEnv{
		t:          t,
		fake:       fake,
		api:        api,
		srv:        srv,
		sent:       sent,
		bus:        bus,
		steps:      steps,
		merchantID: uuid.NewString(),
		userID:     uuid.NewString(),
	}
	fake.Put(collabtest.Merchants, domain.Merchant{
		ID:              e.merchantID,
		MerchantName:    "Acme",
		Currency:        "SEK",
		IsEnabled:       true,
		BalanceAccounts: []domain.BalanceAccountRef{},
	})
	e.token = e.addUser("owner@example.com", domain.MerchantLink{
		MerchantID: e.merchantID, MerchantName: "Acme", Roles: "admin",
	})
	return e
}

// addUser stores a user with the given links and returns a token for it.
func (e *testEnv) addUser(email string, links ...domain.MerchantLink) string {
	e.t.Helper()
	id := e.userID
	if email != "owner@example.com" {
		id = uuid.NewString()
	}
	if links == nil {
		links = []domain.MerchantLink{}
	}
	e.fake.Put(collabtest.Users, domain.User{ID: id, Email: email, Merchants: links, IsEnabled: true})
	token, err := auth.IssueToken(testSecret, id, email, time.Hour)
	if err != nil {
		e.t.Fatalf("issue token: %v", err)
	}
	return token
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (e *testEnv) do(method, path string, body any, token string) response {
	e.t.Helper()
	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(payload))
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		e.t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	return response{status: resp.StatusCode, header: resp.Header, body: buf.Bytes()}
}

func (r response) envelope(t *testing.T) apierr.Envelope {
	t.Helper()
	var env apierr.Envelope
	if err := json.Unmarshal(r.body, &env); err != nil {
		t.Fatalf("decode envelope %q: %v", r.body, err)
	}
	return env
}

func (r response) decode(t *testing.T, out any) {
	t.Helper()
	if err := json.Unmarshal(r.body, out); err != nil {
		t.Fatalf("decode %q: %v", r.body, err)
	}
}

func expectError(t *testing.T, r response, code int, reason string) {
	t.Helper()
	if r.status != code {
		t.Fatalf("expected status %d, got %d: %s", code, r.status, r.body)
	}
	env := r.envelope(t)
	if env.Code != code || env.ReasonPhrase != reason {
		t.Fatalf("expected %d %s, got %+v", code, reason, env)
	}
}

func TestGateRejectsMissingOrInvalidToken(t *testing.T) {
	e := newTestEnv(t)
	id := uuid.NewString()
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/users/me"},
		{http.MethodGet, "/api/v1/merchants/" + id},
		{http.MethodPatch, "/api/v1/merchants/" + id},
		{http.MethodPost, "/api/v1/merchants"},
		{http.MethodPost, "/api/v1/balance-accounts"},
		{http.MethodGet, "/api/v1/business-units/" + id},
		{http.MethodDelete, "/api/v1/business-units/" + id},
		{http.MethodGet, "/api/v1/point-of-services/" + id + "/modules"},
		{http.MethodPost, "/api/v1/partner-networks/" + id + "/members"},
		{http.MethodPatch, "/api/v1/orders/" + id + "/status"},
		{http.MethodGet, "/api/v1/merchants/" + id + "/statistics"},
		{http.MethodGet, "/api/v1/countries"},
	}
	forged, err := auth.IssueToken("other-secret", e.userID, "owner@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	for _, rt := range routes {
		for _, token := range []string{"", "not-a-jwt", "Bearer " + forged} {
			r := e.do(rt.method, rt.path, map[string]any{"x": 1}, token)
			expectError(t, r, http.StatusUnauthorized, apierr.ReasonNotAuthenticated)
		}
	}
	if n := e.fake.Writes(); n != 0 {
		t.Fatalf("rejected requests issued %d writes", n)
	}
}

func TestBearerPrefixIsOptional(t *testing.T) {
	e := newTestEnv(t)
	for _, token := range []string{e.token, "Bearer " + e.token, "bearer " + e.token} {
		r := e.do(http.MethodGet, "/api/v1/users/me", nil, token)
		if r.status != http.StatusOK {
			t.Fatalf("token form %q: status %d %s", token[:7], r.status, r.body)
		}
	}
}

func TestMeReturnsTypedProfile(t *testing.T) {
	e := newTestEnv(t)
	e.fake.Put(collabtest.Users, map[string]any{
		"_id":          e.userID,
		"email":        "owner@example.com",
		"merchants":    []any{map[string]any{"merchantID": e.merchantID, "merchantName": "Acme", "roles": "admin"}},
		"isEnabled":    true,
		"passwordHash": "$2a$10$secret",
		"resetToken":   "tok",
	})
	r := e.do(http.MethodGet, "/api/v1/users/me", nil, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("me: %d %s", r.status, r.body)
	}
	var body map[string]any
	r.decode(t, &body)
	if _, ok := body["passwordHash"]; ok {
		t.Fatalf("internal field leaked: %s", r.body)
	}
	if _, ok := body["resetToken"]; ok {
		t.Fatalf("internal field leaked: %s", r.body)
	}
	if body["email"] != "owner@example.com" || body["_id"] != e.userID {
		t.Fatalf("unexpected profile %v", body)
	}
}

func TestInvalidAndUnknownIdentifiers(t *testing.T) {
	e := newTestEnv(t)
	missing := uuid.NewString()
	cases := []struct {
		path   string
		reason string
		code   int
	}{
		{"/api/v1/merchants/not-a-uuid", apierr.ReasonInvalidUUID, http.StatusBadRequest},
		{"/api/v1/merchants/" + missing, "MerchantNotFoundError", http.StatusNotFound},
		{"/api/v1/balance-accounts/123", apierr.ReasonInvalidUUID, http.StatusBadRequest},
		{"/api/v1/balance-accounts/" + missing, "BalanceAccountNotFoundError", http.StatusNotFound},
		{"/api/v1/point-of-services/" + missing, "PointOfServiceNotFoundError", http.StatusNotFound},
		{"/api/v1/partner-networks/" + missing, "PartnerNetworkNotFoundError", http.StatusNotFound},
		{"/api/v1/products/" + missing, "ProductNotFoundError", http.StatusNotFound},
		{"/api/v1/accounts/" + missing, "AccountNotFoundError", http.StatusNotFound},
		{"/api/v1/retail-transactions/" + missing, "RetailTransactionNotFoundError", http.StatusNotFound},
		{"/api/v1/webshops/" + missing, "WebshopNotFoundError", http.StatusNotFound},
		{"/api/v1/webshops/xyz", apierr.ReasonInvalidUUID, http.StatusBadRequest},
	}
	for _, tc := range cases {
		r := e.do(http.MethodGet, tc.path, nil, e.token)
		expectError(t, r, tc.code, tc.reason)
	}
}

func TestCreateBalanceAccountLinksMerchant(t *testing.T) {
	e := newTestEnv(t)
	r := e.do(http.MethodPost, "/api/v1/balance-accounts", map[string]any{
		"balanceAccountType": "balance",
		"balanceCurrency":    "sek",
		"issuerMerchantID":   e.merchantID,
		"ownerID":            e.merchantID,
	}, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("create: %d %s", r.status, r.body)
	}
	var created domain.BalanceAccount
	r.decode(t, &created)
	if created.ID == "" || created.BalanceAmount != 0 {
		t.Fatalf("unexpected account %+v", created)
	}
	if !e.fake.Has(collabtest.BalanceAccounts, created.ID) {
		t.Fatalf("account %s not stored", created.ID)
	}

	r = e.do(http.MethodGet, "/api/v1/merchants/"+e.merchantID, nil, e.token)
	var m domain.Merchant
	r.decode(t, &m)
	if len(m.BalanceAccounts) != 1 || m.BalanceAccounts[0].BalanceAccountID != created.ID {
		t.Fatalf("merchant balance accounts %+v, want %s", m.BalanceAccounts, created.ID)
	}
	if m.BalanceAccounts[0].BalanceCurrency != "SEK" || created.BalanceCurrency != "SEK" {
		t.Fatalf("currency not normalised: ref %q, account %q", m.BalanceAccounts[0].BalanceCurrency, created.BalanceCurrency)
	}
}

func TestCreateBalanceAccountDuplicateCurrency(t *testing.T) {
	e := newTestEnv(t)
	e.fake.Put(collabtest.Merchants, domain.Merchant{
		ID:           e.merchantID,
		MerchantName: "Acme",
		BalanceAccounts: []domain.BalanceAccountRef{
			{BalanceAccountID: uuid.NewString(), BalanceAccountType: "balance", BalanceCurrency: "SEK"},
		},
	})
	for _, currency := range []string{"SEK", "sek", " Sek "} {
		r := e.do(http.MethodPost, "/api/v1/balance-accounts", map[string]any{
			"balanceAccountType": "voucher",
			"balanceCurrency":    currency,
			"issuerMerchantID":   e.merchantID,
			"ownerID":            e.merchantID,
		}, e.token)
		expectError(t, r, http.StatusForbidden, "BalanceAccountAlreadyExistError")
	}

	var m domain.Merchant
	e.fake.Get(collabtest.Merchants, e.merchantID, &m)
	if len(m.BalanceAccounts) != 1 {
		t.Fatalf("balance accounts changed: %+v", m.BalanceAccounts)
	}
	if n := e.fake.Writes(); n != 0 {
		t.Fatalf("duplicate guard issued %d writes", n)
	}
}

func TestCreateBalanceAccountValidation(t *testing.T) {
	e := newTestEnv(t)
	r := e.do(http.MethodPost, "/api/v1/balance-accounts", nil, e.token)
	expectError(t, r, http.StatusBadRequest, apierr.ReasonEmptyRequestBody)

	r = e.do(http.MethodPost, "/api/v1/balance-accounts", map[string]any{"balanceCurrency": "SEK"}, e.token)
	expectError(t, r, http.StatusBadRequest, apierr.ReasonFieldValidation)

	r = e.do(http.MethodPost, "/api/v1/balance-accounts", map[string]any{
		"balanceAccountType": "balance",
		"balanceCurrency":    "SEK",
		"issuerMerchantID":   "nope",
		"ownerID":            e.merchantID,
	}, e.token)
	expectError(t, r, http.StatusBadRequest, apierr.ReasonInvalidUUID)

	r = e.do(http.MethodPost, "/api/v1/balance-accounts", map[string]any{
		"balanceAccountType": "gold",
		"balanceCurrency":    "SEK",
		"issuerMerchantID":   e.merchantID,
		"ownerID":            e.merchantID,
	}, e.token)
	expectError(t, r, http.StatusBadRequest, apierr.ReasonFieldValidation)

	r = e.do(http.MethodPost, "/api/v1/balance-accounts", "{not json", e.token)
	expectError(t, r, http.StatusBadRequest, apierr.ReasonFieldValidation)
}

func TestOwnershipGateBlocksWrites(t *testing.T) {
	e := newTestEnv(t)
	other := uuid.NewString()
	e.fake.Put(collabtest.Merchants, domain.Merchant{ID: other, MerchantName: "Other"})
	buID := uuid.NewString()
	e.fake.Put(collabtest.BusinessUnits, domain.BusinessUnit{
		ID: buID, BusinessUnitName: "Shop", MerchantID: other,
		PointOfServices: []domain.PointOfServiceRef{},
	})
	posID := uuid.NewString()
	e.fake.Put(collabtest.PointOfServices, domain.PointOfService{ID: posID, PointOfServiceName: "Till", MerchantID: other})

	cases := []struct {
		method, path string
		body         any
		desc         string
	}{
		{http.MethodPatch, "/api/v1/merchants/" + other, map[string]any{"merchantName": "x"}, deniedMerchantAdmin},
		{http.MethodDelete, "/api/v1/merchants/" + other, nil, deniedMerchantAdmin},
		{http.MethodPatch, "/api/v1/business-units/" + buID, map[string]any{"businessUnitName": "x"}, deniedBusinessUnit},
		{http.MethodDelete, "/api/v1/business-units/" + buID, nil, deniedBusinessUnit},
		{http.MethodPatch, "/api/v1/point-of-services/" + posID + "/availability", map[string]any{"availability": "Operative"}, deniedPointOfService},
		{http.MethodPost, "/api/v1/balance-accounts", map[string]any{
			"balanceAccountType": "balance", "balanceCurrency": "EUR",
			"issuerMerchantID": other, "ownerID": other,
		}, deniedMerchant},
		{http.MethodPost, "/api/v1/balance-accounts", map[string]any{
			"balanceAccountType": "balance", "balanceCurrency": "EUR",
			"issuerMerchantID": e.merchantID, "ownerID": other,
		}, deniedMerchant},
		{http.MethodPost, "/api/v1/balance-accounts", map[string]any{
			"balanceAccountType": "balance", "balanceCurrency": "EUR",
			"issuerMerchantID": other, "ownerID": e.merchantID,
		}, deniedMerchant},
		{http.MethodPost, "/api/v1/business-units", map[string]any{"businessUnitName": "x", "merchantID": other}, deniedMerchant},
		{http.MethodPost, "/api/v1/products", map[string]any{"productName": "x", "issuerMerchantID": other}, deniedMerchant},
	}
	for _, tc := range cases {
		r := e.do(tc.method, tc.path, tc.body, e.token)
		expectError(t, r, http.StatusUnauthorized, apierr.ReasonNotAuthenticated)
		if got := r.envelope(t).Description; got != tc.desc {
			t.Fatalf("%s %s: description %q, want %q", tc.method, tc.path, got, tc.desc)
		}
	}
	if n := e.fake.Writes(); n != 0 {
		t.Fatalf("rejected requests issued %d writes", n)
	}
	var bu domain.BusinessUnit
	e.fake.Get(collabtest.BusinessUnits, buID, &bu)
	if bu.BusinessUnitName != "Shop" {
		t.Fatalf("business unit modified: %+v", bu)
	}
	var m domain.Merchant
	e.fake.Get(collabtest.Merchants, other, &m)
	if len(m.BalanceAccounts) != 0 {
		t.Fatalf("unlinked merchant gained balance accounts: %+v", m.BalanceAccounts)
	}
}

func TestViewRoleCannotAdminister(t *testing.T) {
	e := newTestEnv(t)
	viewer := e.addUser("viewer@example.com", domain.MerchantLink{MerchantID: e.merchantID, Roles: "view"})

	r := e.do(http.MethodGet, "/api/v1/merchants/"+e.merchantID, nil, viewer)
	if r.status != http.StatusOK {
		t.Fatalf("viewer read: %d %s", r.status, r.body)
	}
	r = e.do(http.MethodPatch, "/api/v1/merchants/"+e.merchantID, map[string]any{"merchantName": "x"}, viewer)
	expectError(t, r, http.StatusUnauthorized, apierr.ReasonNotAuthenticated)

	// "administrator" is not "admin" under exact matching.
	almost := e.addUser("almost@example.com", domain.MerchantLink{MerchantID: e.merchantID, Roles: "administrator"})
	r = e.do(http.MethodPatch, "/api/v1/merchants/"+e.merchantID, map[string]any{"merchantName": "x"}, almost)
	expectError(t, r, http.StatusUnauthorized, apierr.ReasonNotAuthenticated)
}

func TestPatchMerchantRejectsProtectedFields(t *testing.T) {
	e := newTestEnv(t)
	r := e.do(http.MethodPatch, "/api/v1/merchants/"+e.merchantID, map[string]any{
		"merchantName":    "Renamed",
		"balanceAccounts": []any{},
	}, e.token)
	expectError(t, r, http.StatusBadRequest, apierr.ReasonFieldValidation)

	r = e.do(http.MethodPatch, "/api/v1/merchants/"+e.merchantID, map[string]any{"merchantName": "Renamed"}, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("patch: %d %s", r.status, r.body)
	}
	var m domain.Merchant
	e.fake.Get(collabtest.Merchants, e.merchantID, &m)
	if m.MerchantName != "Renamed" || m.UpdatedDate != testNow.Format(time.RFC3339) {
		t.Fatalf("merchant not patched: %+v", m)
	}
}

func TestCreateMerchantProvisionsBalanceAccounts(t *testing.T) {
	e := newTestEnv(t)
	r := e.do(http.MethodPost, "/api/v1/merchants", map[string]any{
		"merchantName":     "New Co",
		"merchantCurrency": "eur",
	}, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("create: %d %s", r.status, r.body)
	}
	var m domain.Merchant
	r.decode(t, &m)
	if m.PayoutFrequency != domain.DefaultPayoutFrequency || m.Currency != "EUR" {
		t.Fatalf("unexpected merchant %+v", m)
	}
	if len(m.BalanceAccounts) != len(domain.BalanceAccountTypes) {
		t.Fatalf("balance accounts %+v", m.BalanceAccounts)
	}
	for i, ref := range m.BalanceAccounts {
		if ref.BalanceAccountType != domain.BalanceAccountTypes[i] || !e.fake.Has(collabtest.BalanceAccounts, ref.BalanceAccountID) {
			t.Fatalf("balance account %d: %+v", i, ref)
		}
	}

	var u domain.User
	e.fake.Get(collabtest.Users, e.userID, &u)
	link, ok := u.Link(m.ID)
	if !ok || link.Roles != "admin" {
		t.Fatalf("caller not linked as admin: %+v", u.Merchants)
	}
	if e.fake.WritesTo(collabtest.MerchantLogs) != 1 {
		t.Fatal("merchant log not written")
	}
}

func TestDeleteMerchantWithVouchers(t *testing.T) {
	e := newTestEnv(t)
	e.fake.Put(collabtest.Vouchers, domain.Voucher{ID: uuid.NewString(), IssuerMerchantID: e.merchantID})
	r := e.do(http.MethodDelete, "/api/v1/merchants/"+e.merchantID, nil, e.token)
	expectError(t, r, http.StatusForbidden, apierr.ReasonVouchersLinked)
	if !e.fake.Has(collabtest.Merchants, e.merchantID) {
		t.Fatal("merchant deleted despite vouchers")
	}
}

func TestDeleteMerchantUnlinksCaller(t *testing.T) {
	e := newTestEnv(t)
	r := e.do(http.MethodDelete, "/api/v1/merchants/"+e.merchantID, nil, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("delete: %d %s", r.status, r.body)
	}
	if e.fake.Has(collabtest.Merchants, e.merchantID) {
		t.Fatal("merchant still stored")
	}
	var u domain.User
	e.fake.Get(collabtest.Users, e.userID, &u)
	if _, ok := u.Link(e.merchantID); ok {
		t.Fatalf("caller still linked: %+v", u.Merchants)
	}
}

func TestDeleteBusinessUnitThenGetReturnsEmptyList(t *testing.T) {
	e := newTestEnv(t)
	buID := uuid.NewString()
	e.fake.Put(collabtest.BusinessUnits, domain.BusinessUnit{
		ID: buID, BusinessUnitName: "Shop", MerchantID: e.merchantID,
		PointOfServices: []domain.PointOfServiceRef{},
	})

	r := e.do(http.MethodGet, "/api/v1/business-units/"+buID, nil, e.token)
	var list []map[string]any
	r.decode(t, &list)
	if len(list) != 1 || list[0]["_id"] != buID {
		t.Fatalf("expected one business unit, got %s", r.body)
	}

	r = e.do(http.MethodDelete, "/api/v1/business-units/"+buID, nil, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("delete: %d %s", r.status, r.body)
	}
	env := r.envelope(t)
	if env.Code != http.StatusOK || env.Description != "Successfully deleted the specified business-unit" || env.ReasonPhrase != "" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	r = e.do(http.MethodGet, "/api/v1/business-units/"+buID, nil, e.token)
	if r.status != http.StatusOK || string(bytes.TrimSpace(r.body)) != "[]" {
		t.Fatalf("expected empty list, got %d %s", r.status, r.body)
	}
}

func TestAddPointOfServiceDuplicateGuard(t *testing.T) {
	e := newTestEnv(t)
	buID, posID := uuid.NewString(), uuid.NewString()
	e.fake.Put(collabtest.BusinessUnits, domain.BusinessUnit{
		ID: buID, BusinessUnitName: "Shop", MerchantID: e.merchantID,
		PointOfServices: []domain.PointOfServiceRef{},
	})
	e.fake.Put(collabtest.PointOfServices, domain.PointOfService{ID: posID, PointOfServiceName: "Till", MerchantID: e.merchantID})

	path := "/api/v1/business-units/" + buID + "/point-of-services"
	r := e.do(http.MethodPost, path, map[string]any{"pointOfServiceID": posID}, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("add: %d %s", r.status, r.body)
	}
	var bu domain.BusinessUnit
	e.fake.Get(collabtest.BusinessUnits, buID, &bu)
	if !bu.HasPointOfService(posID) {
		t.Fatalf("point of service not linked: %+v", bu)
	}
	var pos domain.PointOfService
	e.fake.Get(collabtest.PointOfServices, posID, &pos)
	if pos.BusinessUnitID != buID {
		t.Fatalf("point of service not pointed at unit: %+v", pos)
	}

	r = e.do(http.MethodPost, path, map[string]any{"pointOfServiceID": posID}, e.token)
	expectError(t, r, http.StatusForbidden, "PointOfServiceAlreadyExistError")
}

func TestInviteToMerchant(t *testing.T) {
	e := newTestEnv(t)
	path := "/api/v1/merchants/" + e.merchantID + "/invite"

	r := e.do(http.MethodPost, path, map[string]any{"email": "New.Person@Example.com"}, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("invite: %d %s", r.status, r.body)
	}
	var created map[string]any
	for _, u := range e.fake.All(collabtest.Users) {
		if u["email"] == "new.person@example.com" {
			created = u
		}
	}
	if created == nil {
		t.Fatal("invitee identity not created")
	}
	links, _ := created["merchants"].([]any)
	if len(links) != 1 {
		t.Fatalf("unexpected merchants %v", created["merchants"])
	}
	link, _ := links[0].(map[string]any)
	if link["merchantID"] != e.merchantID || link["roles"] != "" {
		t.Fatalf("unexpected link %v", link)
	}

	e.bus.Wait()
	msgs := e.sent.Messages()
	if len(msgs) != 1 || msgs[0].To != "new.person@example.com" || msgs[0].Type != notify.TypeEmail {
		t.Fatalf("unexpected notifications %+v", msgs)
	}

	r = e.do(http.MethodPost, path, map[string]any{"email": "owner@example.com"}, e.token)
	expectError(t, r, http.StatusForbidden, apierr.ReasonMerchantLinked)
}

func TestInviteReplacesPendingInvite(t *testing.T) {
	e := newTestEnv(t)
	otherMerchant := uuid.NewString()
	id := uuid.NewString()
	e.fake.Put(collabtest.Users, domain.User{
		ID: id, Email: "pending@example.com", Merchants: []domain.MerchantLink{}, IsEnabled: true,
		MerchantInvites: []domain.MerchantInvite{
			{MerchantID: e.merchantID, InviteCode: "old"},
			{MerchantID: otherMerchant, InviteCode: "keep"},
		},
	})

	r := e.do(http.MethodPost, "/api/v1/merchants/"+e.merchantID+"/invite",
		map[string]any{"email": "pending@example.com"}, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("invite: %d %s", r.status, r.body)
	}
	var u domain.User
	e.fake.Get(collabtest.Users, id, &u)
	if len(u.MerchantInvites) != 2 {
		t.Fatalf("expected 2 invites, got %+v", u.MerchantInvites)
	}
	for _, inv := range u.MerchantInvites {
		if inv.InviteCode == "old" {
			t.Fatalf("stale invite kept: %+v", u.MerchantInvites)
		}
	}

	e.bus.Wait()
	msgs := e.sent.Messages()
	if len(msgs) != 1 || msgs[0].Data["reinvite"] != true || msgs[0].Data["newUser"] != false {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestInviteDoesNotWaitForNotification(t *testing.T) {
	e := newTestEnv(t)
	e.sent.Err = http.ErrHandlerTimeout
	r := e.do(http.MethodPost, "/api/v1/merchants/"+e.merchantID+"/invite",
		map[string]any{"email": "someone@example.com"}, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("publish failure leaked into response: %d %s", r.status, r.body)
	}
	e.bus.Wait()
}

func TestRemoveMerchantUser(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("staff@example.com", domain.MerchantLink{MerchantID: e.merchantID, Roles: "view"})
	var staffID string
	for _, u := range e.fake.All(collabtest.Users) {
		if u["email"] == "staff@example.com" {
			staffID, _ = u["_id"].(string)
		}
	}

	r := e.do(http.MethodDelete, "/api/v1/merchants/"+e.merchantID+"/users/"+staffID, nil, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("remove: %d %s", r.status, r.body)
	}
	var u domain.User
	e.fake.Get(collabtest.Users, staffID, &u)
	if len(u.Merchants) != 0 {
		t.Fatalf("link not removed: %+v", u.Merchants)
	}

	r = e.do(http.MethodDelete, "/api/v1/merchants/"+e.merchantID+"/users/"+staffID, nil, e.token)
	expectError(t, r, http.StatusNotFound, "UserNotFoundError")
}

func TestBankAccountAndSalesPersonGuards(t *testing.T) {
	e := newTestEnv(t)
	bank := map[string]any{"account": "SE4550000000058398257466", "bankName": "Bank", "isDefault": true}
	path := "/api/v1/merchants/" + e.merchantID + "/bank-accounts"
	if r := e.do(http.MethodPost, path, bank, e.token); r.status != http.StatusOK {
		t.Fatalf("bank account: %d %s", r.status, r.body)
	}
	expectError(t, e.do(http.MethodPost, path, bank, e.token), http.StatusForbidden, "BankAccountAlreadyExistError")

	person := map[string]any{"salesPersonCode": "S1", "name": "Sam"}
	path = "/api/v1/merchants/" + e.merchantID + "/sales-persons"
	if r := e.do(http.MethodPost, path, person, e.token); r.status != http.StatusOK {
		t.Fatalf("sales person: %d %s", r.status, r.body)
	}
	expectError(t, e.do(http.MethodPost, path, person, e.token), http.StatusForbidden, "SalesPersonsAlreadyExistError")
}

func TestPricePlanFailureIsJournaledWithoutRollback(t *testing.T) {
	e := newTestEnv(t)
	planID := uuid.NewString()
	e.fake.Put(collabtest.PricePlans, domain.PricePlan{ID: planID, PricePlanName: "Pro", MonthlyFee: 99, Currency: "SEK"})
	e.fake.Fail(http.MethodPost, collabtest.MerchantBillings, http.StatusServiceUnavailable)

	r := e.do(http.MethodPost, "/api/v1/merchants/"+e.merchantID+"/price-plan",
		map[string]any{"pricePlanID": planID}, e.token)
	expectError(t, r, http.StatusServiceUnavailable, apierr.ReasonDownstream)

	var m domain.Merchant
	e.fake.Get(collabtest.Merchants, e.merchantID, &m)
	if m.PricePlan == nil || m.PricePlan.PricePlanID != planID {
		t.Fatalf("merchant patch should stay applied: %+v", m.PricePlan)
	}
	if e.fake.WritesTo(collabtest.MerchantPricePlans) != 1 {
		t.Fatal("merchant price plan record missing")
	}

	entries := e.steps.Entries()
	if len(entries) == 0 {
		t.Fatal("no journal entries")
	}
	last := entries[len(entries)-1]
	if last.Operation != "merchant.update-price-plan" || last.Stage != "merchant-billing" || last.Status != journal.StatusFailed {
		t.Fatalf("unexpected last entry %+v", last)
	}
	if last.CallerID != e.userID {
		t.Fatalf("caller not recorded: %+v", last)
	}
	for _, en := range entries[:len(entries)-1] {
		if en.Status != journal.StatusCompleted || en.RunID != last.RunID {
			t.Fatalf("unexpected entry %+v", en)
		}
	}
}

func TestReadsAreNotJournaled(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodGet, "/api/v1/merchants/"+e.merchantID, nil, e.token)
	if n := len(e.steps.Entries()); n != 0 {
		t.Fatalf("GET recorded %d journal entries", n)
	}
}

func TestPaymentProvider(t *testing.T) {
	e := newTestEnv(t)
	path := "/api/v1/merchants/" + e.merchantID + "/payment-provider"
	expectError(t, e.do(http.MethodGet, path, nil, e.token), http.StatusNotFound, apierr.ReasonPaymentProviderNotFound)

	e.fake.Put(collabtest.Merchants, domain.Merchant{
		ID: e.merchantID, MerchantName: "Acme",
		PaymentProviderAccounts: []domain.PaymentProviderAccount{{PaymentProvider: "stripe", IsEnabled: true}},
	})
	r := e.do(http.MethodGet, path, nil, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("payment provider: %d %s", r.status, r.body)
	}
}

func TestSetOrderStatus(t *testing.T) {
	e := newTestEnv(t)
	orderID := uuid.NewString()
	e.fake.Put(collabtest.Orders, domain.Order{ID: orderID, SellerMerchantID: e.merchantID, OrderStatus: "Created"})
	path := "/api/v1/orders/" + orderID + "/status"

	expectError(t, e.do(http.MethodPatch, path, map[string]any{"orderStatus": "Lost"}, e.token),
		http.StatusForbidden, apierr.ReasonStatusCodeNotValid)

	if r := e.do(http.MethodPatch, path, map[string]any{"orderStatus": "Paid"}, e.token); r.status != http.StatusOK {
		t.Fatalf("status: %d %s", r.status, r.body)
	}
	var o domain.Order
	e.fake.Get(collabtest.Orders, orderID, &o)
	if o.OrderStatus != "Paid" {
		t.Fatalf("order not updated: %+v", o)
	}
}

func TestWebshopVisibility(t *testing.T) {
	e := newTestEnv(t)
	other := uuid.NewString()
	own, foreign := uuid.NewString(), uuid.NewString()
	e.fake.Put(collabtest.Webshops, domain.Webshop{ID: own, WebshopName: "Mine", OwnerMerchantID: e.merchantID})
	e.fake.Put(collabtest.Webshops, domain.Webshop{ID: foreign, WebshopName: "Theirs", OwnerMerchantID: other})

	if r := e.do(http.MethodGet, "/api/v1/webshops/"+own, nil, e.token); r.status != http.StatusOK {
		t.Fatalf("owner read of disabled webshop: %d %s", r.status, r.body)
	}
	expectError(t, e.do(http.MethodGet, "/api/v1/webshops/"+foreign, nil, e.token),
		http.StatusUnauthorized, apierr.ReasonNotEnabled)

	e.fake.Put(collabtest.Webshops, domain.Webshop{ID: foreign, WebshopName: "Theirs", OwnerMerchantID: other, IsEnabled: true})
	if r := e.do(http.MethodGet, "/api/v1/webshops/"+foreign, nil, e.token); r.status != http.StatusOK {
		t.Fatalf("enabled webshop: %d %s", r.status, r.body)
	}
}

func TestPartnerNetworkMembers(t *testing.T) {
	e := newTestEnv(t)
	member := uuid.NewString()
	e.fake.Put(collabtest.Merchants, domain.Merchant{ID: member, MerchantName: "Partner"})
	networkID := uuid.NewString()
	e.fake.Put(collabtest.PartnerNetworks, domain.PartnerNetwork{
		ID:                    networkID,
		PartnerNetworkName:    "Net",
		AdminRights:           []domain.Right{{MerchantID: e.merchantID, Roles: "admin"}},
		PartnerNetworkMembers: []domain.Right{},
	})
	path := "/api/v1/partner-networks/" + networkID + "/members"
	if r := e.do(http.MethodPost, path, map[string]any{"merchantID": member}, e.token); r.status != http.StatusOK {
		t.Fatalf("add member: %d %s", r.status, r.body)
	}
	var n domain.PartnerNetwork
	e.fake.Get(collabtest.PartnerNetworks, networkID, &n)
	if !n.HasMember(member) {
		t.Fatalf("member not added: %+v", n.PartnerNetworkMembers)
	}
	expectError(t, e.do(http.MethodPost, path, map[string]any{"merchantID": member}, e.token),
		http.StatusForbidden, "PartnerNetworkMemberAlreadyExistError")

	viewer := e.addUser("viewer@example.com", domain.MerchantLink{MerchantID: member, Roles: "view"})
	if r := e.do(http.MethodGet, "/api/v1/partner-networks/"+networkID, nil, viewer); r.status != http.StatusOK {
		t.Fatalf("member read: %d %s", r.status, r.body)
	}
	expectError(t, e.do(http.MethodPost, path, map[string]any{"merchantID": e.merchantID}, viewer),
		http.StatusUnauthorized, apierr.ReasonNotAuthenticated)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	e.fake.SetLogin("owner@example.com", "secret", "tok-123")

	r := e.do(http.MethodPost, "/api/v1/login", map[string]any{"email": "Owner@Example.com", "password": "secret"}, "")
	if r.status != http.StatusOK {
		t.Fatalf("login: %d %s", r.status, r.body)
	}
	var out map[string]string
	r.decode(t, &out)
	if out["token"] != "tok-123" {
		t.Fatalf("unexpected login response %v", out)
	}

	r = e.do(http.MethodPost, "/api/v1/login", map[string]any{"email": "owner@example.com", "password": "wrong"}, "")
	expectError(t, r, http.StatusUnauthorized, apierr.ReasonNotAuthenticated)

	r = e.do(http.MethodPost, "/api/v1/login", map[string]any{"email": "not-an-email", "password": "x"}, "")
	expectError(t, r, http.StatusBadRequest, apierr.ReasonFieldValidation)
}

func TestMerchantStatistics(t *testing.T) {
	e := newTestEnv(t)
	for _, tx := range []domain.AccountTransaction{
		{MerchantID: e.merchantID, Amount: 10.5, Currency: "SEK", TransactionDate: "2026-01-03T10:00:00Z"},
		{MerchantID: e.merchantID, Amount: 4.5, Currency: "SEK", TransactionDate: "2026-01-20T10:00:00Z"},
		{MerchantID: e.merchantID, Amount: 7, Currency: "EUR", TransactionDate: "2026-02-01T10:00:00Z"},
		{MerchantID: uuid.NewString(), Amount: 99, Currency: "SEK", TransactionDate: "2026-01-03T10:00:00Z"},
	} {
		e.fake.Put(collabtest.AccountTransactions, tx)
	}
	base := "/api/v1/merchants/" + e.merchantID + "/statistics"

	r := e.do(http.MethodGet, base+"?interval=monthly&fromDate=2026-01-01&toDate=2026-02-28", nil, e.token)
	if r.status != http.StatusOK {
		t.Fatalf("statistics: %d %s", r.status, r.body)
	}
	var stats merchantStats
	r.decode(t, &stats)
	want := []statPoint{
		{Period: "2026-01", Currency: "SEK", TransactionCount: 2, TotalAmount: 15},
		{Period: "2026-02", Currency: "EUR", TransactionCount: 1, TotalAmount: 7},
	}
	if len(stats.Statistics) != len(want) {
		t.Fatalf("statistics %+v", stats.Statistics)
	}
	for i := range want {
		if stats.Statistics[i] != want[i] {
			t.Fatalf("point %d: %+v, want %+v", i, stats.Statistics[i], want[i])
		}
	}

	expectError(t, e.do(http.MethodGet, base+"?interval=monthly", nil, e.token),
		http.StatusBadRequest, apierr.ReasonFieldValidation)
	expectError(t, e.do(http.MethodGet, base+"?interval=weekly&fromDate=2026-01-01&toDate=2026-02-28", nil, e.token),
		http.StatusBadRequest, apierr.ReasonFieldValidation)
	expectError(t, e.do(http.MethodGet, base+"?interval=daily&fromDate=2023-01-01&toDate=2026-02-28", nil, e.token),
		http.StatusBadRequest, apierr.ReasonFieldValidation)
}

func TestAggregate(t *testing.T) {
	txs := []domain.AccountTransaction{
		{Amount: 0.1, Currency: "SEK", TransactionDate: "2026-01-03T10:00:00Z"},
		{Amount: 0.2, Currency: "SEK", TransactionDate: "2026-01-03T23:59:00Z"},
		{Amount: 5, Currency: "SEK", TransactionDate: "2026-01-04"},
		{Amount: 1, Currency: "EUR", TransactionDate: "2026-01-03"},
		{Amount: 1, Currency: "EUR", TransactionDate: "bad"},
	}
	got := aggregate(txs, intervalDaily)
	want := []statPoint{
		{Period: "2026-01-03", Currency: "EUR", TransactionCount: 1, TotalAmount: 1},
		{Period: "2026-01-03", Currency: "SEK", TransactionCount: 2, TotalAmount: 0.3},
		{Period: "2026-01-04", Currency: "SEK", TransactionCount: 1, TotalAmount: 5},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("point %d: %+v, want %+v", i, got[i], want[i])
		}
	}
	if out := aggregate(nil, intervalMonthly); len(out) != 0 {
		t.Fatalf("expected no points, got %+v", out)
	}
}
