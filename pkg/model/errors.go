// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError is returned for malformed user input. Field names the
// offending input so clients can render the message next to it.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidTransition is returned when an Authorization can't move from its
// current status into the requested one.
type InvalidTransition struct {
	AuthorizationID string
	From            Status
	To              Status
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("authorization %s can not move from %s to %s", e.AuthorizationID, e.From, e.To)
}

// CrossCustomerError is returned when a loan is bound to an Authorization
// owned by someone other than the loan's applicant.
type CrossCustomerError struct {
	LoanID          string
	AuthorizationID string
}

func (e *CrossCustomerError) Error() string {
	return fmt.Sprintf("authorization %s does not belong to the applicant of loan %s", e.AuthorizationID, e.LoanID)
}

// ExternalLinkError wraps a rejection or failure from the bank-linking,
// verification or billing provider.
type ExternalLinkError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *ExternalLinkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ExternalLinkError) Unwrap() error {
	return e.Err
}

// RateLimited is returned when the same operation was just requested.
type RateLimited struct {
	Operation  string
	RetryAfter time.Duration
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("%s was requested too recently, retry in %v", e.Operation, e.RetryAfter)
}

func IsRateLimited(err error) bool {
	var rl *RateLimited
	return errors.As(err, &rl)
}

// NotFound is returned for unknown identifiers.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func IsNotFound(err error) bool {
	var nf *NotFound
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsInvalidTransition(err error) bool {
	var it *InvalidTransition
	return errors.As(err, &it)
}

func IsCrossCustomer(err error) bool {
	var cc *CrossCustomerError
	return errors.As(err, &cc)
}

func IsExternalLink(err error) bool {
	var el *ExternalLinkError
	return errors.As(err, &el)
}
