package domain

import "github.com/anshika-invatu/merchantwebapi-sub000/internal/access"

type Product struct {
	Document         `json:"-"`
	ID               string  `json:"_id"`
	ProductName      string  `json:"productName"`
	IssuerMerchantID string  `json:"issuerMerchantID"`
	SalesPrice       float64 `json:"salesPrice"`
	Currency         string  `json:"currency,omitempty"`
	IsEnabled        bool    `json:"isEnabled"`
}

func (p Product) Grants() []access.Grant { return grant(p.IssuerMerchantID) }

type Module struct {
	ID               string `json:"_id"`
	ModuleName       string `json:"moduleName"`
	PointOfServiceID string `json:"pointOfServiceID"`
}

type Account struct {
	Document    `json:"-"`
	ID          string `json:"_id"`
	AccountName string `json:"accountName,omitempty"`
	MerchantID  string `json:"merchantID"`
	Currency    string `json:"currency,omitempty"`
}

func (a Account) Grants() []access.Grant { return grant(a.MerchantID) }

// AccountTransaction is one booked movement used by the statistics endpoint.
type AccountTransaction struct {
	ID              string  `json:"_id"`
	MerchantID      string  `json:"merchantID"`
	AccountID       string  `json:"accountID,omitempty"`
	TransactionType string  `json:"transactionType,omitempty"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	TransactionDate string  `json:"transactionDate"`
}

type RetailTransaction struct {
	Document    `json:"-"`
	ID          string  `json:"_id"`
	MerchantID  string  `json:"merchantID"`
	TotalAmount float64 `json:"totalAmountInclVat"`
	Currency    string  `json:"currency,omitempty"`
}

func (r RetailTransaction) Grants() []access.Grant { return grant(r.MerchantID) }

// Order status codes accepted by PATCH /orders/{id}/status.
var OrderStatusCodes = []string{"Created", "Pending", "Paid", "Delivered", "Cancelled", "Refunded"}

type Order struct {
	Document         `json:"-"`
	ID               string `json:"_id"`
	SellerMerchantID string `json:"sellerMerchantID"`
	OrderStatus      string `json:"orderStatus"`
}

func (o Order) Grants() []access.Grant { return grant(o.SellerMerchantID) }
