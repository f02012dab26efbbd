// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/base"
)

// Authorization is a customer's consented bank account which can be debited for loan payments.
type Authorization struct {
	// ID is a unique string representing this Authorization.
	ID string `json:"id"`

	// CustomerID is the owner of this bank account.
	CustomerID string `json:"customerID"`

	// BankName is the display name of the financial institution.
	BankName string `json:"bankName"`

	// AccountLast4 is the masked account number.
	AccountLast4 string `json:"accountLast4"`

	// RoutingLast4 is the masked routing number, only known for manually entered accounts.
	RoutingLast4 string `json:"routingLast4,omitempty"`

	// AccountType defines the account as checking or savings
	AccountType AccountType `json:"accountType"`

	// Status defines the current state of the Authorization
	Status Status `json:"status"`

	// StatusReason is an optional note from the last pause or revoke.
	StatusReason string `json:"statusReason,omitempty"`

	IsDefault bool   `json:"isDefault"`
	Source    Source `json:"source"`

	// VerificationStatus is the result of verifying the account with the bank verification provider.
	VerificationStatus VerificationStatus `json:"verificationStatus"`

	// SECCode is the NACHA Standard Entry Class code debits will use.
	SECCode string `json:"secCode"`

	ConsentCaptured base.Time  `json:"consentCaptured"`
	AuthorizationIP string     `json:"authorizationIP,omitempty"`
	RevokedAt       *base.Time `json:"revokedAt,omitempty"`

	// Created a timestamp representing the initial creation date of the object in ISO 8601
	Created base.Time `json:"created"`

	// Updated is a timestamp when the object was last modified in ISO8601 format
	Updated base.Time `json:"updated"`

	// EncryptedToken is the provider's account token sealed by a secrets.TokenKeeper
	EncryptedToken string `json:"-"`

	// HashedAccountNumber is used to find duplicate manual entries.
	HashedAccountNumber string `json:"-"`

	// ExternalItemID is the linking provider's identifier for the credentials behind this account.
	ExternalItemID string `json:"-"`
}

func (a *Authorization) Validate() error {
	if a == nil {
		return errors.New("nil Authorization")
	}
	if a.ID == "" || a.CustomerID == "" {
		return errors.New("missing Authorization ID and/or CustomerID")
	}
	if err := a.AccountType.Validate(); err != nil {
		return err
	}
	if err := a.Status.Validate(); err != nil {
		return err
	}
	return a.Source.Validate()
}

// Eligible returns true when the Authorization can be charged.
func (a *Authorization) Eligible() bool {
	return a != nil && a.Status == StatusActive
}

type Status string

const (
	// StatusSetupPending is held while an Authorization is being created. It is never persisted.
	StatusSetupPending Status = "setup-pending"
	StatusActive       Status = "active"
	StatusPaused       Status = "paused"
	StatusRevoked      Status = "revoked"
)

func (s Status) Validate() error {
	switch s {
	case StatusActive, StatusPaused, StatusRevoked:
		return nil
	default:
		return fmt.Errorf("Status(%s) is invalid", s)
	}
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = Status(strings.ToLower(str))
	return s.Validate()
}

type Source string

const (
	SourceManual Source = "manual"
	SourceLinked Source = "linked"
)

func (s Source) Validate() error {
	switch s {
	case SourceManual, SourceLinked:
		return nil
	default:
		return fmt.Errorf("Source(%s) is invalid", s)
	}
}

type AccountType string

const (
	Checking AccountType = "checking"
	Savings  AccountType = "savings"
)

func (t AccountType) Validate() error {
	switch t {
	case Checking, Savings:
		return nil
	default:
		return fmt.Errorf("AccountType(%s) is invalid", t)
	}
}

func (t *AccountType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = AccountType(strings.ToLower(s))
	return t.Validate()
}

// VerificationStatus mirrors the bank verification provider's account check.
type VerificationStatus string

const (
	VerificationPositive VerificationStatus = "pos"
	VerificationNegative VerificationStatus = "neg"
	VerificationUnknown  VerificationStatus = "unk"
)

// ParseVerificationStatus reads a provider verification result, treating
// anything unrecognized as unknown.
func ParseVerificationStatus(v string) VerificationStatus {
	switch s := VerificationStatus(strings.ToLower(strings.TrimSpace(v))); s {
	case VerificationPositive, VerificationNegative:
		return s
	}
	return VerificationUnknown
}
