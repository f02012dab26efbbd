// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"fmt"

	"github.com/moov-io/base"

	"github.com/go-kit/kit/log"
)

// Event is an audit record of a change made to a customer's authorizations, loans or invoices.
type Event struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerID"`
	Topic      string    `json:"topic"`
	Message    string    `json:"message"`
	Type       EventType `json:"type"`
	Created    base.Time `json:"created"`

	Metadata map[string]string `json:"metadata"`
}

type EventType string

const (
	AuthorizationEvent EventType = "Authorization"
	LoanEvent          EventType = "Loan"
	InvoiceEvent       EventType = "Invoice"
	WebhookEvent       EventType = "Webhook"
)

// Emitter records events and logs any failure to do so. The change an event
// describes has already been committed, so writing it is never fatal.
type Emitter struct {
	logger log.Logger
	repo   Repository
}

func NewEmitter(logger log.Logger, repo Repository) *Emitter {
	return &Emitter{logger: logger, repo: repo}
}

func (e *Emitter) Emit(customerID string, typ EventType, topic, message string, metadata map[string]string) {
	if e == nil || e.repo == nil {
		return
	}
	event := &Event{
		ID:       base.ID(),
		Topic:    topic,
		Message:  message,
		Type:     typ,
		Metadata: metadata,
	}
	if err := e.repo.WriteEvent(customerID, event); err != nil {
		e.logger.Log("events", fmt.Sprintf("ERROR writing %s event for customer=%s: %v", topic, customerID, err), "level", "error")
	}
}
