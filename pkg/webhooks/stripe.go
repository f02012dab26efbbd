// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/moov-io/autopay/pkg/billing"
	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/notify"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
)

const providerStripe = "stripe"

var stripeInvoiceEvents = map[string]model.InvoiceStatus{
	"invoice.paid":                    model.InvoicePaid,
	"invoice.payment_failed":          model.InvoicePaymentFailed,
	"invoice.voided":                  model.InvoiceVoid,
	"invoice.payment_action_required": model.InvoiceActionRequired,
}

// HandleStripe verifies payload against the Stripe-Signature header and applies invoice events.
func (p *Processor) HandleStripe(payload []byte, signature string) (*Result, error) {
	if p.stripeWebhookSecret == "" {
		return nil, &model.ValidationError{Field: "Stripe-Signature", Message: "stripe webhooks are not configured"}
	}
	event, err := webhook.ConstructEvent(payload, signature, p.stripeWebhookSecret)
	if err != nil {
		return nil, &model.ValidationError{Field: "Stripe-Signature", Message: err.Error()}
	}
	return p.process(providerStripe, event.ID, event.Type, func() (string, error) {
		return p.applyStripeEvent(event)
	})
}

func (p *Processor) applyStripeEvent(event stripe.Event) (string, error) {
	status, ok := stripeInvoiceEvents[event.Type]
	if !ok || p.invoices == nil {
		return ActionIgnored, nil
	}
	if event.Data == nil {
		return "", errors.New("stripe event without data")
	}
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return "", fmt.Errorf("reading stripe invoice: %v", err)
	}
	pi, err := billing.FromStripe(&inv)
	if err != nil {
		return "", err
	}

	updated, err := p.invoices.RecordStatus(pi.ID, status, pi.AmountPaid)
	if err != nil {
		if model.IsNotFound(err) {
			// issued outside of autopay
			p.logger.Log("webhooks", fmt.Sprintf("unknown stripe invoice=%s", pi.ID), "eventType", event.Type)
			return ActionIgnored, nil
		}
		return "", err
	}
	if status == model.InvoicePaymentFailed && p.alerts != nil {
		p.alerts.Info(&notify.Message{
			Component: "webhooks-stripe",
			Summary:   fmt.Sprintf("payment failed for invoice %s", updated.ID),
			Details: map[string]string{
				"invoiceID": updated.ID,
				"loanID":    updated.LoanID,
			},
		})
	}
	return string(status), nil
}
