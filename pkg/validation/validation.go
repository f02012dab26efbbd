// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package validation checks manually entered bank account details before any
// provider is contacted. Clients run the same rules through POST /bank-accounts/validate.
package validation

import (
	"strings"
	"unicode"

	"github.com/moov-io/autopay/pkg/model"
)

const (
	routingNumberLength = 9

	minAccountNumberLength = 4
	maxAccountNumberLength = 17
)

// ManualEntry is what a customer types when they aren't linking through a provider.
type ManualEntry struct {
	RoutingNumber        string `json:"routingNumber"`
	AccountNumber        string `json:"accountNumber"`
	ConfirmAccountNumber string `json:"confirmAccountNumber"`
	Consent              bool   `json:"consent"`
}

func (e ManualEntry) Validate() error {
	if err := Validate(e.RoutingNumber, e.AccountNumber, e.ConfirmAccountNumber, e.Consent); err != nil {
		return err
	}
	return nil
}

// Validate applies each rule in order and returns the first failure.
func Validate(routingNumber, accountNumber, confirmAccountNumber string, consent bool) *model.ValidationError {
	if n := len(Digits(routingNumber)); n != routingNumberLength {
		return &model.ValidationError{
			Field:   "routingNumber",
			Message: "routing number must be exactly 9 digits",
		}
	}
	if accountNumber != confirmAccountNumber {
		return &model.ValidationError{
			Field:   "confirmAccountNumber",
			Message: "account numbers do not match",
		}
	}
	if n := len(Digits(accountNumber)); n < minAccountNumberLength || n > maxAccountNumberLength {
		return &model.ValidationError{
			Field:   "accountNumber",
			Message: "account number must be between 4 and 17 digits",
		}
	}
	if !consent {
		return &model.ValidationError{
			Field:   "consent",
			Message: "authorization to debit this account is required",
		}
	}
	return nil
}

// Digits strips every non-digit character from s.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
}

// LastFour returns the trailing four digits of s.
func LastFour(s string) string {
	d := Digits(s)
	if len(d) <= 4 {
		return d
	}
	return d[len(d)-4:]
}
