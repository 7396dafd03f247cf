package domain

import (
	"strings"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/access"
)

// Balance account types provisioned for every new merchant.
const (
	BalanceTypeBalance  = "balance"
	BalanceTypeVoucher  = "voucher"
	BalanceTypeCashcard = "cashcard"
	BalanceTypeCashpool = "cashpool"
)

// BalanceAccountTypes in provisioning order.
var BalanceAccountTypes = []string{BalanceTypeBalance, BalanceTypeVoucher, BalanceTypeCashcard, BalanceTypeCashpool}

const DefaultPayoutFrequency = "monthly"

type Merchant struct {
	Document                `json:"-"`
	ID                      string                   `json:"_id"`
	MerchantName            string                   `json:"merchantName"`
	CountryCode             string                   `json:"countryCode,omitempty"`
	Currency                string                   `json:"merchantCurrency,omitempty"`
	Email                   string                   `json:"email,omitempty"`
	PayoutFrequency         string                   `json:"payoutFrequency,omitempty"`
	IsEnabled               bool                     `json:"isEnabled"`
	BalanceAccounts         []BalanceAccountRef      `json:"balanceAccounts"`
	BankAccounts            []BankAccount            `json:"bankAccounts"`
	SalesPersons            []SalesPerson            `json:"salesPersons"`
	PricePlan               *PricePlanRef            `json:"pricePlan,omitempty"`
	PaymentProviderAccounts []PaymentProviderAccount `json:"paymentProviderAccounts,omitempty"`
	CreatedDate             string                   `json:"createdDate,omitempty"`
	UpdatedDate             string                   `json:"updatedDate,omitempty"`
}

// Grants: a merchant is owned by itself.
func (m Merchant) Grants() []access.Grant { return grant(m.ID) }

type BalanceAccountRef struct {
	BalanceAccountID   string `json:"balanceAccountID"`
	BalanceAccountName string `json:"balanceAccountName,omitempty"`
	BalanceAccountType string `json:"balanceAccountType"`
	BalanceCurrency    string `json:"balanceCurrency"`
}

type BankAccount struct {
	Account   string `json:"account"`
	BIC       string `json:"bic,omitempty"`
	BankName  string `json:"bankName,omitempty"`
	Currency  string `json:"currency,omitempty"`
	IsDefault bool   `json:"isDefault"`
}

type SalesPerson struct {
	SalesPersonCode string `json:"salesPersonCode"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
}

type PricePlanRef struct {
	PricePlanID   string `json:"pricePlanID"`
	PricePlanName string `json:"pricePlanName,omitempty"`
}

type PaymentProviderAccount struct {
	PaymentProvider          string `json:"paymentProvider"`
	PaymentProviderAccountID string `json:"paymentProviderAccountID"`
	IsEnabled                bool   `json:"isEnabled"`
}

// HasBalanceCurrency reports whether an account in currency is already linked.
func (m Merchant) HasBalanceCurrency(currency string) bool {
	for _, b := range m.BalanceAccounts {
		if strings.EqualFold(b.BalanceCurrency, currency) {
			return true
		}
	}
	return false
}

func (m Merchant) HasBankAccount(account string) bool {
	for _, b := range m.BankAccounts {
		if b.Account == account {
			return true
		}
	}
	return false
}

func (m Merchant) HasSalesPerson(code string) bool {
	for _, s := range m.SalesPersons {
		if s.SalesPersonCode == code {
			return true
		}
	}
	return false
}

type PricePlan struct {
	Document      `json:"-"`
	ID            string  `json:"_id"`
	PricePlanName string  `json:"pricePlanName"`
	Currency      string  `json:"currency,omitempty"`
	MonthlyFee    float64 `json:"monthlyFee"`
	IsEnabled     bool    `json:"isEnabled"`
}

// MerchantPricePlan links a merchant to a plan from a start date.
type MerchantPricePlan struct {
	ID          string `json:"_id"`
	MerchantID  string `json:"merchantID"`
	PricePlanID string `json:"pricePlanID"`
	StartDate   string `json:"startDate"`
}

// MerchantBilling is the billing record created after a plan change.
type MerchantBilling struct {
	ID               string  `json:"_id"`
	MerchantID       string  `json:"merchantID"`
	PricePlanID      string  `json:"pricePlanID"`
	PricePlanName    string  `json:"pricePlanName,omitempty"`
	MonthlyFee       float64 `json:"monthlyFee"`
	Currency         string  `json:"currency,omitempty"`
	BillingStartDate string  `json:"billingStartDate"`
}

// MerchantLog is an audit record kept by the merchant service.
type MerchantLog struct {
	ID          string `json:"_id"`
	MerchantID  string `json:"merchantID"`
	UserID      string `json:"userID"`
	Action      string `json:"action"`
	Description string `json:"description"`
	CreatedDate string `json:"createdDate"`
}

type Webshop struct {
	Document        `json:"-"`
	ID              string `json:"_id"`
	WebshopName     string `json:"webshopName"`
	OwnerMerchantID string `json:"ownerMerchantID"`
	IsEnabled       bool   `json:"isEnabled"`
}

func (w Webshop) Grants() []access.Grant { return grant(w.OwnerMerchantID) }
