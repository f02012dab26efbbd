// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"strings"

	"github.com/moov-io/base"
)

// Invoice is our record of an invoice issued by the billing provider.
type Invoice struct {
	ID              string        `json:"id"`
	LoanID          string        `json:"loanID"`
	AuthorizationID string        `json:"authorizationID"`
	Status          InvoiceStatus `json:"status"`
	AmountDue       *Amount       `json:"amountDue"`
	AmountPaid      *Amount       `json:"amountPaid"`
	HostedURL       string        `json:"hostedURL,omitempty"`

	// ReplacedBy is set once an invoice was voided and reissued.
	ReplacedBy string `json:"replacedBy,omitempty"`

	Created base.Time `json:"created"`
	Updated base.Time `json:"updated"`
}

type InvoiceStatus string

const (
	InvoiceDraft          InvoiceStatus = "draft"
	InvoiceOpen           InvoiceStatus = "open"
	InvoicePaid           InvoiceStatus = "paid"
	InvoicePaymentFailed  InvoiceStatus = "payment_failed"
	InvoiceActionRequired InvoiceStatus = "action_required"
	InvoiceVoid           InvoiceStatus = "void"
	InvoiceUncollectible  InvoiceStatus = "uncollectible"
)

// ParseInvoiceStatus reads the billing provider's status string.
func ParseInvoiceStatus(v string) InvoiceStatus {
	switch s := InvoiceStatus(strings.ToLower(strings.TrimSpace(v))); s {
	case InvoiceDraft, InvoiceOpen, InvoicePaid, InvoicePaymentFailed, InvoiceActionRequired, InvoiceVoid, InvoiceUncollectible:
		return s
	}
	return InvoiceOpen
}

// Final returns true for statuses the billing provider never moves an invoice out of.
func (s InvoiceStatus) Final() bool {
	return s == InvoicePaid || s == InvoiceVoid
}

// Settled returns true once no further payment can happen on the invoice.
func (s InvoiceStatus) Settled() bool {
	return s == InvoicePaid || s == InvoiceVoid || s == InvoiceUncollectible
}
