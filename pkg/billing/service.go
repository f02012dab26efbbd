// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/events"
	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/resolution"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
)

const defaultProviderTimeout = 30 * time.Second

// Service issues invoices against a loan's resolved payment account.
type Service struct {
	logger   log.Logger
	repo     Repository
	provider Provider
	engine   *resolution.Engine
	emitter  *events.Emitter

	limiter   Limiter
	rateLimit time.Duration

	currency string
	timeout  time.Duration
}

func NewService(logger log.Logger, cfg config.Billing, repo Repository, provider Provider, engine *resolution.Engine, emitter *events.Emitter) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		provider: provider,
		engine:   engine,
		emitter:  emitter,

		limiter:   newMemoryLimiter(),
		rateLimit: cfg.InvoiceRateLimit,

		currency: strings.ToUpper(cfg.Currency),
		timeout:  defaultProviderTimeout,
	}
}

// UseLimiter replaces the in-process invoice rate limiter, typically with one
// shared by every autopay instance.
func (s *Service) UseLimiter(limiter Limiter) {
	if limiter != nil {
		s.limiter = limiter
	}
}

var errNotConfigured = errors.New("billing provider is not configured")

type CreateRequest struct {
	CustomerEmail string        `json:"email"`
	CustomerName  string        `json:"name"`
	Amount        *model.Amount `json:"amount"`
	Description   string        `json:"description"`
}

func (req CreateRequest) validate(currency string) error {
	if req.CustomerEmail == "" {
		return &model.ValidationError{Field: "email", Message: "missing customer email"}
	}
	if err := req.Amount.Validate(); err != nil {
		return &model.ValidationError{Field: "amount", Message: err.Error()}
	}
	if currency != "" && req.Amount.Symbol() != currency {
		return &model.ValidationError{Field: "amount", Message: fmt.Sprintf("invoices are issued in %s", currency)}
	}
	return nil
}

// CreateInvoice bills loanID to its resolved account, which must be Active.
// Repeated requests for one loan within the configured rate limit are refused.
func (s *Service) CreateInvoice(ctx context.Context, loanID string, req CreateRequest) (*model.Invoice, error) {
	if s.provider == nil {
		return nil, &model.ExternalLinkError{Provider: providerName, Err: errNotConfigured}
	}
	if err := req.validate(s.currency); err != nil {
		return nil, err
	}
	loan, err := s.engine.Loan(loanID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.engine.ResolveLoan(loan)
	if err != nil {
		return nil, err
	}
	if !resolved.HasAccount || !resolved.Authorization.Eligible() {
		return nil, &model.ValidationError{Field: "authorizationID", Message: "loan has no active payment account"}
	}

	ctx, cancelFn := context.WithTimeout(ctx, s.timeout)
	defer cancelFn()

	release, err := s.claim(ctx, loan.ID)
	if err != nil {
		return nil, err
	}

	pi, err := s.provider.CreateInvoice(ctx, InvoiceRequest{
		LoanID:          loan.ID,
		AuthorizationID: resolved.Authorization.ID,
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		Amount:          req.Amount,
		Description:     req.Description,
	})
	if err != nil {
		release()
		return nil, err
	}
	inv := newInvoice(pi, loan.ID, resolved.Authorization.ID)
	if err := s.repo.SaveInvoice(inv); err != nil {
		return nil, err
	}
	s.logger.Log("billing", fmt.Sprintf("created invoice=%s", inv.ID), "loanID", loan.ID, "authorizationID", inv.AuthorizationID)
	s.emitter.Emit(loan.CustomerID, events.InvoiceEvent, "invoice.created", fmt.Sprintf("invoice %s issued for %s", inv.ID, inv.AmountDue), map[string]string{
		"invoiceID":       inv.ID,
		"loanID":          loan.ID,
		"authorizationID": inv.AuthorizationID,
	})
	return inv, nil
}

// claim reserves invoice creation for loanID. The returned func gives the
// reservation back when the provider didn't issue an invoice.
func (s *Service) claim(ctx context.Context, loanID string) (func(), error) {
	if s.rateLimit <= 0 || s.limiter == nil {
		return func() {}, nil
	}
	key := "invoice:create:" + loanID
	ok, err := s.limiter.Claim(ctx, key, s.rateLimit)
	if err != nil {
		// an unreachable limiter doesn't block billing
		s.logger.Log("billing", fmt.Sprintf("ERROR claiming invoice rate limit: %v", err), "loanID", loanID, "level", "error")
		return func() {}, nil
	}
	if !ok {
		return nil, &model.RateLimited{Operation: fmt.Sprintf("invoice for loan %s", loanID), RetryAfter: s.rateLimit}
	}
	return func() {
		if err := s.limiter.Release(context.Background(), key); err != nil {
			s.logger.Log("billing", fmt.Sprintf("ERROR releasing invoice rate limit: %v", err), "loanID", loanID, "level", "error")
		}
	}, nil
}

func newInvoice(pi *ProviderInvoice, loanID, authorizationID string) *model.Invoice {
	now := base.NewTime(time.Now())
	inv := &model.Invoice{
		ID:              pi.ID,
		LoanID:          loanID,
		AuthorizationID: authorizationID,
		Status:          pi.Status,
		AmountDue:       pi.AmountDue,
		AmountPaid:      pi.AmountPaid,
		HostedURL:       pi.HostedURL,
		Created:         now,
		Updated:         now,
	}
	if inv.AmountPaid == nil {
		inv.AmountPaid, _ = model.NewAmountFromCents(inv.AmountDue.Symbol(), 0)
	}
	return inv
}

func (s *Service) getInvoice(invoiceID string) (*model.Invoice, error) {
	inv, err := s.repo.GetInvoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, &model.NotFound{Kind: "invoice", ID: invoiceID}
	}
	return inv, nil
}

// RegenerateInvoice voids invoiceID and issues its replacement. Paid invoices are refused.
func (s *Service) RegenerateInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	if s.provider == nil {
		return nil, &model.ExternalLinkError{Provider: providerName, Err: errNotConfigured}
	}
	existing, err := s.getInvoice(invoiceID)
	if err != nil {
		return nil, err
	}
	switch {
	case existing.Status == model.InvoicePaid:
		return nil, &model.ValidationError{Field: "invoiceID", Message: "paid invoices can't be regenerated"}
	case existing.ReplacedBy != "":
		return nil, &model.ValidationError{Field: "invoiceID", Message: fmt.Sprintf("invoice was replaced by %s", existing.ReplacedBy)}
	}

	ctx, cancelFn := context.WithTimeout(ctx, s.timeout)
	defer cancelFn()

	pi, err := s.provider.RegenerateInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	inv := newInvoice(pi, existing.LoanID, existing.AuthorizationID)
	if err := s.repo.SaveInvoice(inv); err != nil {
		return nil, err
	}
	if err := s.repo.MarkReplaced(existing.ID, inv.ID); err != nil {
		return nil, err
	}

	customerID := s.loanCustomer(existing.LoanID)
	s.emitter.Emit(customerID, events.InvoiceEvent, "invoice.regenerated", fmt.Sprintf("invoice %s replaced by %s", existing.ID, inv.ID), map[string]string{
		"invoiceID": inv.ID,
		"replaced":  existing.ID,
		"loanID":    existing.LoanID,
	})
	return inv, nil
}

// GetInvoice returns our record of invoiceID, first syncing it with the provider when refresh is set.
func (s *Service) GetInvoice(ctx context.Context, invoiceID string, refresh bool) (*model.Invoice, error) {
	inv, err := s.getInvoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if !refresh || s.provider == nil {
		return inv, nil
	}

	ctx, cancelFn := context.WithTimeout(ctx, s.timeout)
	defer cancelFn()

	pi, err := s.provider.InvoiceStatus(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if pi.Status == inv.Status && pi.AmountPaid.Equal(inv.AmountPaid) {
		return inv, nil
	}
	return s.RecordStatus(invoiceID, pi.Status, pi.AmountPaid)
}

// LatestInvoice returns the newest invoice issued for loanID, or nil.
func (s *Service) LatestInvoice(loanID string) (*model.Invoice, error) {
	invoices, err := s.repo.ListLoanInvoices(loanID)
	if err != nil || len(invoices) == 0 {
		return nil, err
	}
	return invoices[0], nil
}

// RecordStatus stores a provider reported status change for invoiceID. Paid
// and void invoices keep their status when older events arrive late.
func (s *Service) RecordStatus(invoiceID string, status model.InvoiceStatus, amountPaid *model.Amount) (*model.Invoice, error) {
	existing, err := s.getInvoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if existing.Status == status && (amountPaid == nil || amountPaid.Equal(existing.AmountPaid)) {
		return existing, nil
	}
	if existing.Status.Final() && existing.Status != status {
		s.logger.Log("billing", fmt.Sprintf("ignoring %s for %s invoice", status, existing.Status), "invoiceID", invoiceID)
		return existing, nil
	}
	if err := s.repo.UpdateStatus(invoiceID, status, amountPaid); err != nil {
		return nil, err
	}

	s.emitter.Emit(s.loanCustomer(existing.LoanID), events.InvoiceEvent, "invoice."+string(status), fmt.Sprintf("invoice %s is %s", invoiceID, status), map[string]string{
		"invoiceID": invoiceID,
		"loanID":    existing.LoanID,
	})
	return s.getInvoice(invoiceID)
}

func (s *Service) loanCustomer(loanID string) string {
	loan, err := s.engine.Loan(loanID)
	if err != nil {
		s.logger.Log("billing", fmt.Sprintf("unable to find loan=%s: %v", loanID, err), "level", "warn")
		return ""
	}
	return loan.CustomerID
}
