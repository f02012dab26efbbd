// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

const providerName = "stripe"

var (
	stripeClientErrors = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "stripe_client_errors",
		Help: "Counter of errors with the Stripe API",
	}, []string{"operation"})
)

// Stripe issues send_invoice invoices which the customer pays from the hosted invoice page.
type Stripe struct {
	logger log.Logger
	api    *client.API

	daysUntilDue int64
}

func NewStripe(logger log.Logger, cfg config.Billing) (*Stripe, error) {
	if cfg.Stripe == nil {
		return nil, errors.New("nil Stripe config")
	}
	var backends *stripe.Backends
	if cfg.Stripe.BackendURL != "" {
		backendConfig := &stripe.BackendConfig{
			URL:               stripe.String(cfg.Stripe.BackendURL),
			MaxNetworkRetries: stripe.Int64(0),
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
		}
	}
	days := cfg.DaysUntilDue
	if days <= 0 {
		days = 30
	}
	return &Stripe{
		logger:       logger,
		api:          client.New(cfg.Stripe.GetSecretKey(), backends),
		daysUntilDue: days,
	}, nil
}

func (s *Stripe) CreateInvoice(ctx context.Context, req InvoiceRequest) (*ProviderInvoice, error) {
	if err := req.Amount.Validate(); err != nil {
		return nil, &model.ValidationError{Field: "amount", Message: err.Error()}
	}
	customerID, err := s.findOrCreateCustomer(ctx, req.CustomerEmail, req.CustomerName, req.LoanID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, customerID, req.LoanID, req.AuthorizationID, req.Description, req.Amount)
}

func (s *Stripe) issue(ctx context.Context, customerID, loanID, authorizationID, description string, amount *model.Amount) (*ProviderInvoice, error) {
	params := &stripe.InvoiceParams{
		Customer:         stripe.String(customerID),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:     stripe.Int64(s.daysUntilDue),
		AutoAdvance:      stripe.Bool(false),
	}
	params.Context = ctx
	params.AddMetadata("loan_id", loanID)
	params.AddMetadata("authorization_id", authorizationID)

	inv, err := s.api.Invoices.New(params)
	if err != nil {
		return nil, s.wrap("invoices.new", err)
	}

	if description == "" {
		description = fmt.Sprintf("Loan %s payment", loanID)
	}
	itemParams := &stripe.InvoiceItemParams{
		Customer:    stripe.String(customerID),
		Invoice:     stripe.String(inv.ID),
		Amount:      stripe.Int64(amount.Cents()),
		Currency:    stripe.String(strings.ToLower(amount.Symbol())),
		Description: stripe.String(description),
	}
	itemParams.Context = ctx
	itemParams.AddMetadata("loan_id", loanID)
	if _, err := s.api.InvoiceItems.New(itemParams); err != nil {
		return nil, s.wrap("invoiceitems.new", err)
	}

	finalizeParams := &stripe.InvoiceFinalizeParams{}
	finalizeParams.Context = ctx
	inv, err = s.api.Invoices.FinalizeInvoice(inv.ID, finalizeParams)
	if err != nil {
		return nil, s.wrap("invoices.finalize", err)
	}
	return fromStripe(inv)
}

func (s *Stripe) findOrCreateCustomer(ctx context.Context, email, name, loanID string) (string, error) {
	if email == "" {
		return "", &model.ValidationError{Field: "email", Message: "missing customer email"}
	}

	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)
	iter := s.api.Customers.List(listParams)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", s.wrap("customers.list", err)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("loan_id", loanID)
	cust, err := s.api.Customers.New(params)
	if err != nil {
		return "", s.wrap("customers.new", err)
	}
	return cust.ID, nil
}

func (s *Stripe) RegenerateInvoice(ctx context.Context, invoiceID string) (*ProviderInvoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	inv, err := s.api.Invoices.Get(invoiceID, params)
	if err != nil {
		return nil, s.wrap("invoices.get", err, invoiceID)
	}
	if inv.Status == stripe.InvoiceStatusPaid {
		return nil, &model.ValidationError{Field: "invoiceID", Message: "paid invoices can't be regenerated"}
	}
	if inv.Customer == nil {
		return nil, &model.ExternalLinkError{Provider: providerName, Err: fmt.Errorf("invoice %s has no customer", invoiceID)}
	}

	old, err := fromStripe(inv)
	if err != nil {
		return nil, err
	}
	if inv.Status != stripe.InvoiceStatusVoid {
		voidParams := &stripe.InvoiceVoidParams{}
		voidParams.Context = ctx
		if _, err := s.api.Invoices.VoidInvoice(invoiceID, voidParams); err != nil {
			return nil, s.wrap("invoices.void", err, invoiceID)
		}
	}
	s.logger.Log("billing", fmt.Sprintf("voided invoice=%s for regeneration", invoiceID), "loanID", old.LoanID)

	return s.issue(ctx, inv.Customer.ID, old.LoanID, old.AuthorizationID, inv.Description, old.AmountDue)
}

func (s *Stripe) InvoiceStatus(ctx context.Context, invoiceID string) (*ProviderInvoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	inv, err := s.api.Invoices.Get(invoiceID, params)
	if err != nil {
		return nil, s.wrap("invoices.get", err, invoiceID)
	}
	return fromStripe(inv)
}

func (s *Stripe) wrap(operation string, err error, ids ...string) error {
	stripeClientErrors.With("operation", operation).Add(1)

	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.HTTPStatusCode == 404 && len(ids) > 0 {
			return &model.NotFound{Kind: "invoice", ID: ids[0]}
		}
		return &model.ExternalLinkError{
			Provider:  providerName,
			Retryable: serr.HTTPStatusCode >= 500 || serr.HTTPStatusCode == 429,
			Err:       fmt.Errorf("%s: %s", operation, serr.Msg),
		}
	}
	return &model.ExternalLinkError{Provider: providerName, Retryable: true, Err: fmt.Errorf("%s: %v", operation, err)}
}

// fromStripe reads an invoice from the API or a webhook event.
func fromStripe(inv *stripe.Invoice) (*ProviderInvoice, error) {
	if inv == nil {
		return nil, errors.New("nil Stripe invoice")
	}
	symbol := strings.ToUpper(string(inv.Currency))
	if symbol == "" {
		symbol = "USD"
	}
	due, err := model.NewAmountFromCents(symbol, inv.AmountDue)
	if err != nil {
		return nil, err
	}
	paid, err := model.NewAmountFromCents(symbol, inv.AmountPaid)
	if err != nil {
		return nil, err
	}
	out := &ProviderInvoice{
		ID:         inv.ID,
		Status:     model.ParseInvoiceStatus(string(inv.Status)),
		AmountDue:  due,
		AmountPaid: paid,
		HostedURL:  inv.HostedInvoiceURL,
	}
	if inv.Metadata != nil {
		out.LoanID = inv.Metadata["loan_id"]
		out.AuthorizationID = inv.Metadata["authorization_id"]
	}
	return out, nil
}

// FromStripe converts a Stripe invoice delivered by webhook.
func FromStripe(inv *stripe.Invoice) (*ProviderInvoice, error) {
	return fromStripe(inv)
}
