package types

import "strings"

// Address mirrors the commerce backend's shipping address shape.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

// BillingAddress is the address enriched with contact fields the commerce
// backend expects on the billing side of an order.
type BillingAddress struct {
	Address
	Email string `json:"email"`
}

// Normalized returns a copy with trimmed fields and the default country applied.
func (a Address) Normalized() Address {
	out := Address{
		FirstName: strings.TrimSpace(a.FirstName),
		LastName:  strings.TrimSpace(a.LastName),
		Address1:  strings.TrimSpace(a.Address1),
		Address2:  strings.TrimSpace(a.Address2),
		City:      strings.TrimSpace(a.City),
		State:     strings.TrimSpace(a.State),
		Postcode:  strings.TrimSpace(a.Postcode),
		Country:   strings.ToUpper(strings.TrimSpace(a.Country)),
		Phone:     strings.TrimSpace(a.Phone),
	}
	if out.Country == "" {
		out.Country = "CA"
	}
	return out
}

// IsComplete reports whether the fields required for shipping are present.
func (a Address) IsComplete() bool {
	return a.FirstName != "" && a.Address1 != "" && a.City != "" && a.Postcode != "" && a.Country != ""
}
