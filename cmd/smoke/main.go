// Command smoke runs a short end-to-end check against a deployed API:
// login, create a balance account and read the merchant back.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab/rest"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
)

// bearer adds the login token to every call.
type bearer struct {
	token *string
	next  http.RoundTripper
}

func (b bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	if *b.token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+*b.token)
	}
	return b.next.RoundTrip(req)
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.SetFlags(0)
	var (
		baseURL    = env("MERCHANTAPI_SMOKE_URL", "http://localhost:8080") + "/api/v1"
		email      = env("MERCHANTAPI_SMOKE_EMAIL", "")
		password   = env("MERCHANTAPI_SMOKE_PASSWORD", "")
		merchantID = env("MERCHANTAPI_SMOKE_MERCHANT_ID", "")
		currency   = env("MERCHANTAPI_SMOKE_CURRENCY", "SEK")
		key        = env("MERCHANTAPI_FUNCTIONS_KEY", "smoke")
	)
	if email == "" || password == "" || merchantID == "" {
		log.Fatal("MERCHANTAPI_SMOKE_EMAIL, MERCHANTAPI_SMOKE_PASSWORD and MERCHANTAPI_SMOKE_MERCHANT_ID are required")
	}

	var token string
	hc := &http.Client{Timeout: 20 * time.Second, Transport: bearer{token: &token, next: http.DefaultTransport}}
	api, err := rest.New("merchantapi", baseURL, key, rest.WithHTTPClient(hc))
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var login struct {
		Token string `json:"token"`
	}
	if err := api.Post(ctx, "/login", map[string]string{"email": email, "password": password}, &login); err != nil {
		log.Fatalf("login: %v", err)
	}
	token = login.Token

	var created domain.BalanceAccount
	err = api.Post(ctx, "/balance-accounts", map[string]string{
		"balanceAccountType": domain.BalanceTypeBalance,
		"balanceAccountName": "smoke " + time.Now().UTC().Format(time.RFC3339),
		"balanceCurrency":    currency,
		"issuerMerchantID":   merchantID,
		"ownerID":            merchantID,
	}, &created)
	if err != nil {
		log.Fatalf("create balance account: %v", err)
	}

	var m domain.Merchant
	if err := api.Get(ctx, "/merchants/"+rest.PathID(merchantID), nil, &m); err != nil {
		log.Fatalf("get merchant: %v", err)
	}
	for _, ref := range m.BalanceAccounts {
		if ref.BalanceAccountID == created.ID {
			fmt.Printf("smoke test passed: merchant=%s balanceAccount=%s\n", m.ID, created.ID)
			return
		}
	}
	log.Fatalf("balance account %s not linked to merchant %s", created.ID, m.ID)
}
