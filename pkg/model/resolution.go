// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"github.com/moov-io/base"
)

// Loan links a loan to its applicant and an optional payment account override.
type Loan struct {
	ID         string `json:"id"`
	CustomerID string `json:"customerID"`

	// AuthorizationID overrides the customer's default account when non-empty.
	AuthorizationID string `json:"authorizationID,omitempty"`

	Created base.Time `json:"created"`
	Updated base.Time `json:"updated"`
}

type ResolutionSource string

const (
	ResolvedFromLoanOverride    ResolutionSource = "loan_override"
	ResolvedFromCustomerDefault ResolutionSource = "customer_default"
	ResolvedNone                ResolutionSource = "none"
)

// ResolvedAccount is the Authorization which pays a loan, if any.
type ResolvedAccount struct {
	HasAccount       bool             `json:"hasAccount"`
	Authorization    *Authorization   `json:"authorization,omitempty"`
	ResolutionSource ResolutionSource `json:"resolutionSource"`
}
