// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"github.com/moov-io/autopay/pkg/model"
)

type MockRepository struct {
	Invoices map[string]*model.Invoice
	Err      error
}

func (r *MockRepository) GetInvoice(invoiceID string) (*model.Invoice, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	if inv, ok := r.Invoices[invoiceID]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (r *MockRepository) ListLoanInvoices(loanID string) ([]*model.Invoice, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*model.Invoice
	for _, inv := range r.Invoices {
		if inv.LoanID == loanID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MockRepository) SaveInvoice(inv *model.Invoice) error {
	if r.Err != nil {
		return r.Err
	}
	if r.Invoices == nil {
		r.Invoices = make(map[string]*model.Invoice)
	}
	cp := *inv
	r.Invoices[inv.ID] = &cp
	return nil
}

func (r *MockRepository) UpdateStatus(invoiceID string, status model.InvoiceStatus, amountPaid *model.Amount) error {
	if r.Err != nil {
		return r.Err
	}
	inv, ok := r.Invoices[invoiceID]
	if !ok {
		return &model.NotFound{Kind: "invoice", ID: invoiceID}
	}
	inv.Status = status
	if amountPaid != nil {
		inv.AmountPaid = amountPaid
	}
	return nil
}

func (r *MockRepository) MarkReplaced(invoiceID, replacedBy string) error {
	if r.Err != nil {
		return r.Err
	}
	inv, ok := r.Invoices[invoiceID]
	if !ok {
		return &model.NotFound{Kind: "invoice", ID: invoiceID}
	}
	inv.ReplacedBy = replacedBy
	inv.Status = model.InvoiceVoid
	return nil
}
