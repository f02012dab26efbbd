// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package resolution answers which authorization pays a loan. A loan's own
// override wins while it isn't Revoked, otherwise the customer's default is used.
package resolution

import (
	"fmt"
	"strings"

	"github.com/moov-io/autopay/pkg/authorizations"
	"github.com/moov-io/autopay/pkg/events"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	resolutionsComputed = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "payment_account_resolutions",
		Help: "Counter of loan payment account resolutions by source",
	}, []string{"source"})
)

type Engine struct {
	logger  log.Logger
	loans   Repository
	auths   authorizations.Repository
	emitter *events.Emitter
}

func NewEngine(logger log.Logger, loans Repository, auths authorizations.Repository, emitter *events.Emitter) *Engine {
	return &Engine{
		logger:  logger,
		loans:   loans,
		auths:   auths,
		emitter: emitter,
	}
}

func (e *Engine) getLoan(loanID string) (*model.Loan, error) {
	loan, err := e.loans.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, &model.NotFound{Kind: "loan", ID: loanID}
	}
	return loan, nil
}

// Loan returns loanID or NotFound.
func (e *Engine) Loan(loanID string) (*model.Loan, error) {
	return e.getLoan(loanID)
}

// Resolve returns the account which pays loanID.
func (e *Engine) Resolve(loanID string) (*model.ResolvedAccount, error) {
	loan, err := e.getLoan(loanID)
	if err != nil {
		return nil, err
	}
	return e.ResolveLoan(loan)
}

func (e *Engine) ResolveLoan(loan *model.Loan) (*model.ResolvedAccount, error) {
	resolved, err := e.resolve(loan)
	if err != nil {
		return nil, err
	}
	resolutionsComputed.With("source", string(resolved.ResolutionSource)).Add(1)
	return resolved, nil
}

func (e *Engine) resolve(loan *model.Loan) (*model.ResolvedAccount, error) {
	if loan.AuthorizationID != "" {
		auth, err := e.auths.Get(loan.AuthorizationID)
		if err != nil {
			return nil, err
		}
		// a revoked override falls through to the customer's default
		if auth != nil && auth.Status != model.StatusRevoked && auth.CustomerID == loan.CustomerID {
			return &model.ResolvedAccount{
				HasAccount:       true,
				Authorization:    auth,
				ResolutionSource: model.ResolvedFromLoanOverride,
			}, nil
		}
	}

	auths, err := e.auths.ListByCustomer(loan.CustomerID)
	if err != nil {
		return nil, err
	}
	if auth := authorizations.EffectiveDefault(auths); auth != nil {
		return &model.ResolvedAccount{
			HasAccount:       true,
			Authorization:    auth,
			ResolutionSource: model.ResolvedFromCustomerDefault,
		}, nil
	}
	return &model.ResolvedAccount{
		HasAccount:       false,
		ResolutionSource: model.ResolvedNone,
	}, nil
}

// SetLoanAccount overrides the loan's payment account. An empty authorizationID
// clears the override.
func (e *Engine) SetLoanAccount(loanID, authorizationID string) (*model.ResolvedAccount, error) {
	authorizationID = strings.TrimSpace(authorizationID)
	if authorizationID == "" {
		return e.ClearOverride(loanID)
	}

	loan, err := e.getLoan(loanID)
	if err != nil {
		return nil, err
	}
	auth, err := e.auths.Get(authorizationID)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, &model.NotFound{Kind: "authorization", ID: authorizationID}
	}
	if auth.CustomerID != loan.CustomerID {
		e.logger.Log("resolution", "rejected cross-customer override", "loanID", loan.ID, "authorizationID", auth.ID)
		return nil, &model.CrossCustomerError{LoanID: loan.ID, AuthorizationID: auth.ID}
	}
	if auth.Status == model.StatusRevoked {
		return nil, &model.ValidationError{Field: "authorizationID", Message: "authorization is revoked"}
	}

	if loan.AuthorizationID != auth.ID {
		if err := e.loans.SetAuthorization(loan.ID, auth.ID); err != nil {
			return nil, err
		}
		e.logger.Log("resolution", "set loan payment account", "loanID", loan.ID, "authorizationID", auth.ID, "customerID", loan.CustomerID)
		e.emitter.Emit(loan.CustomerID, events.LoanEvent, "loan.override.set", fmt.Sprintf("loan %s pays from account ending in %s", loan.ID, auth.AccountLast4), map[string]string{
			"loanID":          loan.ID,
			"authorizationID": auth.ID,
		})
	}
	return e.Resolve(loan.ID)
}

// ClearOverride returns the loan to its customer's default account.
func (e *Engine) ClearOverride(loanID string) (*model.ResolvedAccount, error) {
	loan, err := e.getLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.AuthorizationID != "" {
		if err := e.loans.SetAuthorization(loan.ID, ""); err != nil {
			return nil, err
		}
		e.logger.Log("resolution", "cleared loan payment account", "loanID", loan.ID, "customerID", loan.CustomerID)
		e.emitter.Emit(loan.CustomerID, events.LoanEvent, "loan.override.cleared", fmt.Sprintf("loan %s pays from the default account", loan.ID), map[string]string{
			"loanID":          loan.ID,
			"authorizationID": loan.AuthorizationID,
		})
	}
	return e.Resolve(loan.ID)
}

// RegisterLoan records customerID as the loan's applicant.
func (e *Engine) RegisterLoan(loanID, customerID string) (*model.Loan, error) {
	loanID, customerID = strings.TrimSpace(loanID), strings.TrimSpace(customerID)
	if loanID == "" {
		return nil, &model.ValidationError{Field: "loanID", Message: "missing loan"}
	}
	if customerID == "" {
		return nil, &model.ValidationError{Field: "customerID", Message: "missing customer"}
	}
	loan, err := e.loans.SaveLoan(loanID, customerID)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(customerID, events.LoanEvent, "loan.registered", "", map[string]string{
		"loanID": loanID,
	})
	return loan, nil
}
