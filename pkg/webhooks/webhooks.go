// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package webhooks applies provider callbacks: invoice status changes from
// Stripe, item revocations from Plaid and ACH returns. Each event is
// processed once per provider event ID.
package webhooks

import (
	"fmt"

	"github.com/moov-io/autopay/pkg/authorizations"
	"github.com/moov-io/autopay/pkg/billing"
	"github.com/moov-io/autopay/pkg/lifecycle"
	"github.com/moov-io/autopay/pkg/notify"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	webhooksProcessed = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Counter of webhook events by provider and outcome",
	}, []string{"provider", "outcome"})
)

const (
	ActionIgnored = "ignored"
	ActionRevoked = "revoked"
	ActionPaused  = "paused"
)

// Result describes what processing an event did.
type Result struct {
	Provider  string `json:"provider"`
	EventID   string `json:"eventID"`
	EventType string `json:"eventType"`

	Duplicate bool   `json:"duplicate,omitempty"`
	Action    string `json:"action,omitempty"`
}

type Processor struct {
	logger log.Logger
	repo   Repository

	auths      authorizations.Repository
	controller *lifecycle.Controller
	invoices   *billing.Service
	alerts     notify.Sender

	stripeWebhookSecret string
	plaid               *plaidVerifier
}

// NewProcessor returns a Processor. invoices may be nil when billing isn't configured
// and plaidKeys nil when linking isn't, which refuses the provider's webhooks.
func NewProcessor(
	logger log.Logger,
	repo Repository,
	auths authorizations.Repository,
	controller *lifecycle.Controller,
	invoices *billing.Service,
	alerts notify.Sender,
	stripeWebhookSecret string,
	plaidKeys PlaidKeys,
) *Processor {
	return &Processor{
		logger:              logger,
		repo:                repo,
		auths:               auths,
		controller:          controller,
		invoices:            invoices,
		alerts:              alerts,
		stripeWebhookSecret: stripeWebhookSecret,
		plaid:               newPlaidVerifier(plaidKeys),
	}
}

// process runs fn unless the event was already handled and records it afterwards.
// Failed events stay unrecorded so the provider's retry is processed.
func (p *Processor) process(provider, eventID, eventType string, fn func() (string, error)) (*Result, error) {
	res := &Result{Provider: provider, EventID: eventID, EventType: eventType}

	seen, err := p.repo.Seen(provider, eventID)
	if err != nil {
		return nil, err
	}
	if seen {
		webhooksProcessed.With("provider", provider, "outcome", "duplicate").Add(1)
		p.logger.Log("webhooks", fmt.Sprintf("skipping duplicate %s event=%s", provider, eventID), "eventType", eventType)
		res.Duplicate = true
		return res, nil
	}

	action, err := fn()
	if err != nil {
		webhooksProcessed.With("provider", provider, "outcome", "error").Add(1)
		p.alert(provider, eventID, eventType, err)
		return nil, err
	}
	if err := p.repo.Record(provider, eventID, eventType); err != nil {
		return nil, err
	}
	webhooksProcessed.With("provider", provider, "outcome", action).Add(1)
	p.logger.Log("webhooks", fmt.Sprintf("processed %s event=%s", provider, eventID), "eventType", eventType, "action", action)

	res.Action = action
	return res, nil
}

func (p *Processor) alert(provider, eventID, eventType string, err error) {
	p.logger.Log("webhooks", fmt.Sprintf("ERROR processing %s event=%s: %v", provider, eventID, err), "eventType", eventType, "level", "error")
	if p.alerts == nil {
		return
	}
	p.alerts.Critical(&notify.Message{
		Component: "webhooks-" + provider,
		Summary:   fmt.Sprintf("failed to process %s: %v", eventType, err),
		Details: map[string]string{
			"eventID":   eventID,
			"eventType": eventType,
		},
	})
}
