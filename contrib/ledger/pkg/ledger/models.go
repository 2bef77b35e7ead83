package ledger

import (
	"github.com/bizref/bizref/pkg/models"
)

type Customer struct {
	models.Base[Customer]
	Name  string `json:"name" gorm:"not null"`
	Email string `json:"email,omitempty"`
}

// Invoice always refers to its customer by business id. CustomerID is the
// persisted column, Customer the hydrated entity.
type Invoice struct {
	models.Base[Invoice]
	Content     string                      `json:"content"`
	AmountCents int64                       `json:"amountCents"`
	CustomerID  models.BusinessID[Customer] `json:"-" gorm:"column:customer_id;index"`
	Customer    *Customer                   `json:"customer" ref:"reference" gorm:"-"`
}

// invoiceResponse writes the invoice in full and its customer as a reference.
type invoiceResponse struct {
	Invoice *Invoice `json:"invoice" ref:"full"`
}

type customerResponse struct {
	Customer *Customer `json:"customer" ref:"full"`
}

// invoiceSummary flattens an invoice and its customer into a single object:
//
//	{"businessId":"1","content":"...","amountCents":100,"customer":"7",
//	 "customer_businessId":"7","customer_name":"Ada"}
type invoiceSummary struct {
	Invoice  *Invoice  `json:"invoice" ref:"full,unwrapped"`
	Customer *Customer `json:"customer" ref:"full,unwrapped,prefix=customer_"`
}

type readOnlyRequest struct {
	ReadOnly bool `json:"readOnly"`
}
