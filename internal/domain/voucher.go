package domain

import "github.com/anshika-invatu/merchantwebapi-sub000/internal/access"

type BalanceAccount struct {
	Document           `json:"-"`
	ID                 string  `json:"_id"`
	BalanceAccountName string  `json:"balanceAccountName,omitempty"`
	BalanceAccountType string  `json:"balanceAccountType"`
	BalanceCurrency    string  `json:"balanceCurrency"`
	BalanceAmount      float64 `json:"balanceAmount"`
	CreditLimit        float64 `json:"creditLimit"`
	IssuerMerchantID   string  `json:"issuerMerchantID"`
	OwnerID            string  `json:"ownerID"`
	IsEnabled          bool    `json:"isEnabled"`
	CreatedDate        string  `json:"createdDate,omitempty"`
}

// Grants: both the issuer and the owner merchant may read a balance account.
func (b BalanceAccount) Grants() []access.Grant {
	out := grant(b.IssuerMerchantID)
	if b.OwnerID != "" && b.OwnerID != b.IssuerMerchantID {
		out = append(out, access.Grant{MerchantID: b.OwnerID})
	}
	return out
}

// Right is an embedded ACL entry.
type Right struct {
	MerchantID   string `json:"merchantID"`
	MerchantName string `json:"merchantName,omitempty"`
	Roles        string `json:"roles"`
}

type PartnerNetwork struct {
	Document              `json:"-"`
	ID                    string  `json:"_id"`
	PartnerNetworkName    string  `json:"partnerNetworkName"`
	AdminRights           []Right `json:"adminRights"`
	PartnerNetworkMembers []Right `json:"partnerNetworkMembers"`
}

// Grants covers admins and members; reading is allowed to both.
func (p PartnerNetwork) Grants() []access.Grant {
	out := p.AdminGrants()
	for _, m := range p.PartnerNetworkMembers {
		out = append(out, access.Grant{MerchantID: m.MerchantID, Roles: m.Roles})
	}
	return out
}

// AdminGrants covers only adminRights entries.
func (p PartnerNetwork) AdminGrants() []access.Grant {
	out := make([]access.Grant, 0, len(p.AdminRights))
	for _, a := range p.AdminRights {
		out = append(out, access.Grant{MerchantID: a.MerchantID, Roles: a.Roles})
	}
	return out
}

func (p PartnerNetwork) HasMember(merchantID string) bool {
	for _, m := range p.PartnerNetworkMembers {
		if m.MerchantID == merchantID {
			return true
		}
	}
	return false
}

type Voucher struct {
	ID               string `json:"_id"`
	IssuerMerchantID string `json:"issuerMerchantID"`
	VoucherToken     string `json:"voucherToken,omitempty"`
}
