// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package status summarizes a loan's payment account and latest invoice into
// one indicator for customer facing screens.
package status

import (
	"fmt"

	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/resolution"
)

type State string

const (
	StateNoAccount      State = "no_account"
	StateActive         State = "active"
	StatePaused         State = "paused"
	StatePaymentDue     State = "payment_due"
	StatePaid           State = "paid"
	StatePaymentFailed  State = "payment_failed"
	StateActionRequired State = "action_required"
)

type Tone string

const (
	ToneGreen  Tone = "green"
	ToneBlue   Tone = "blue"
	ToneOrange Tone = "orange"
	ToneRed    Tone = "red"
	ToneGray   Tone = "gray"
)

type Indicator struct {
	State State  `json:"state"`
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

// Project picks the indicator for a loan. Invoice problems outrank the
// account's state since they need the customer's attention first.
func Project(resolved *model.ResolvedAccount, invoice *model.Invoice) Indicator {
	if invoice != nil && invoice.ReplacedBy == "" {
		switch invoice.Status {
		case model.InvoicePaymentFailed:
			return Indicator{State: StatePaymentFailed, Label: "Payment failed", Tone: ToneRed}
		case model.InvoiceActionRequired:
			return Indicator{State: StateActionRequired, Label: "Payment needs attention", Tone: ToneOrange}
		}
	}

	if resolved == nil || !resolved.HasAccount || resolved.Authorization == nil {
		return Indicator{State: StateNoAccount, Label: "No payment account", Tone: ToneGray}
	}
	auth := resolved.Authorization
	if auth.Status == model.StatusPaused {
		return Indicator{State: StatePaused, Label: "Autopay paused", Tone: ToneOrange}
	}

	if invoice != nil && invoice.ReplacedBy == "" {
		switch invoice.Status {
		case model.InvoiceOpen:
			return Indicator{State: StatePaymentDue, Label: fmt.Sprintf("Payment due: %s", invoice.AmountDue), Tone: ToneBlue}
		case model.InvoicePaid:
			return Indicator{State: StatePaid, Label: "Paid", Tone: ToneGreen}
		}
	}
	return Indicator{State: StateActive, Label: activeLabel(auth), Tone: ToneGreen}
}

func activeLabel(auth *model.Authorization) string {
	if auth.AccountLast4 == "" {
		return "Autopay active"
	}
	if auth.BankName != "" {
		return fmt.Sprintf("Autopay active: %s ****%s", auth.BankName, auth.AccountLast4)
	}
	return fmt.Sprintf("Autopay active: ****%s", auth.AccountLast4)
}

// AuthorizationStatus is what getAuthorizationStatus returns for a loan.
type AuthorizationStatus struct {
	LoanID           string                 `json:"loanID"`
	HasAuthorization bool                   `json:"hasAuthorization"`
	AuthorizationID  string                 `json:"authorizationID,omitempty"`
	Status           model.Status           `json:"status,omitempty"`
	BankName         string                 `json:"bankName,omitempty"`
	AccountLast4     string                 `json:"accountLast4,omitempty"`
	AccountType      model.AccountType      `json:"accountType,omitempty"`
	ResolutionSource model.ResolutionSource `json:"resolutionSource"`
	Invoice          *model.Invoice         `json:"invoice,omitempty"`
	Indicator        Indicator              `json:"indicator"`
}

// InvoiceFinder returns the newest invoice for a loan, or nil.
type InvoiceFinder interface {
	LatestInvoice(loanID string) (*model.Invoice, error)
}

type Service struct {
	engine   *resolution.Engine
	invoices InvoiceFinder
}

// NewService returns a Service. invoices may be nil.
func NewService(engine *resolution.Engine, invoices InvoiceFinder) *Service {
	return &Service{engine: engine, invoices: invoices}
}

func (s *Service) AuthorizationStatus(loanID string) (*AuthorizationStatus, error) {
	resolved, err := s.engine.Resolve(loanID)
	if err != nil {
		return nil, err
	}
	var invoice *model.Invoice
	if s.invoices != nil {
		invoice, err = s.invoices.LatestInvoice(loanID)
		if err != nil {
			return nil, err
		}
	}

	out := &AuthorizationStatus{
		LoanID:           loanID,
		ResolutionSource: resolved.ResolutionSource,
		Invoice:          invoice,
		Indicator:        Project(resolved, invoice),
	}
	if auth := resolved.Authorization; resolved.HasAccount && auth != nil {
		out.HasAuthorization = true
		out.AuthorizationID = auth.ID
		out.Status = auth.Status
		out.BankName = auth.BankName
		out.AccountLast4 = auth.AccountLast4
		out.AccountType = auth.AccountType
	}
	return out, nil
}
