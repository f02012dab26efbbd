// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package billing issues loan invoices through the billing provider and keeps
// our copy of each invoice's status current.
package billing

import (
	"context"

	"github.com/moov-io/autopay/pkg/model"
)

// Provider is the external billing system.
type Provider interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*ProviderInvoice, error)

	// RegenerateInvoice voids invoiceID and issues a replacement for the same amount.
	RegenerateInvoice(ctx context.Context, invoiceID string) (*ProviderInvoice, error)

	InvoiceStatus(ctx context.Context, invoiceID string) (*ProviderInvoice, error)
}

type InvoiceRequest struct {
	LoanID          string
	AuthorizationID string

	CustomerEmail string
	CustomerName  string

	Amount      *model.Amount
	Description string
}

// ProviderInvoice is the provider's view of an invoice.
type ProviderInvoice struct {
	ID         string
	Status     model.InvoiceStatus
	AmountDue  *model.Amount
	AmountPaid *model.Amount
	HostedURL  string

	LoanID          string
	AuthorizationID string
}
