// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"context"
	"fmt"

	"github.com/moov-io/autopay/pkg/model"

	"github.com/moov-io/base"
)

type MockProvider struct {
	Invoices map[string]*ProviderInvoice
	Err      error

	Voided []string
}

func (p *MockProvider) CreateInvoice(ctx context.Context, req InvoiceRequest) (*ProviderInvoice, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	paid, _ := model.NewAmountFromCents(req.Amount.Symbol(), 0)
	inv := &ProviderInvoice{
		ID:              fmt.Sprintf("in_%s", base.ID()[:12]),
		Status:          model.InvoiceOpen,
		AmountDue:       req.Amount,
		AmountPaid:      paid,
		LoanID:          req.LoanID,
		AuthorizationID: req.AuthorizationID,
	}
	inv.HostedURL = "https://invoice.stripe.com/i/" + inv.ID
	p.store(inv)
	return inv, nil
}

func (p *MockProvider) RegenerateInvoice(ctx context.Context, invoiceID string) (*ProviderInvoice, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	old, ok := p.Invoices[invoiceID]
	if !ok {
		return nil, &model.NotFound{Kind: "invoice", ID: invoiceID}
	}
	if old.Status == model.InvoicePaid {
		return nil, &model.ValidationError{Field: "invoiceID", Message: "paid invoices can't be regenerated"}
	}
	old.Status = model.InvoiceVoid
	p.Voided = append(p.Voided, invoiceID)

	return p.CreateInvoice(ctx, InvoiceRequest{
		LoanID:          old.LoanID,
		AuthorizationID: old.AuthorizationID,
		Amount:          old.AmountDue,
	})
}

func (p *MockProvider) InvoiceStatus(ctx context.Context, invoiceID string) (*ProviderInvoice, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if inv, ok := p.Invoices[invoiceID]; ok {
		return inv, nil
	}
	return nil, &model.NotFound{Kind: "invoice", ID: invoiceID}
}

func (p *MockProvider) store(inv *ProviderInvoice) {
	if p.Invoices == nil {
		p.Invoices = make(map[string]*ProviderInvoice)
	}
	p.Invoices[inv.ID] = inv
}
