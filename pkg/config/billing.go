// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/moov-io/autopay/pkg/util"

	"golang.org/x/text/currency"
)

type Billing struct {
	Stripe *Stripe

	// Currency is the ISO 4217 code invoices are issued in.
	Currency string

	DaysUntilDue int64

	// InvoiceRateLimit is how long a loan waits between invoices. Zero disables it.
	InvoiceRateLimit time.Duration
}

func (cfg Billing) Validate() error {
	if _, err := currency.ParseISO(cfg.Currency); err != nil {
		return fmt.Errorf("currency %q: %v", cfg.Currency, err)
	}
	if cfg.DaysUntilDue <= 0 {
		return errors.New("days until due must be positive")
	}
	if cfg.InvoiceRateLimit < 0 {
		return errors.New("negative invoice rate limit")
	}
	return cfg.Stripe.Validate()
}

type Stripe struct {
	SecretKey     string `json:"-"`
	WebhookSecret string `json:"-"`

	// BackendURL overrides the Stripe API host, used against stripe-mock.
	BackendURL string
}

func (cfg *Stripe) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.GetSecretKey() == "" {
		return errors.New("stripe: missing secret key")
	}
	return nil
}

func (cfg *Stripe) GetSecretKey() string {
	if cfg == nil {
		return ""
	}
	return util.Or(os.Getenv("STRIPE_SECRET_KEY"), cfg.SecretKey)
}

func (cfg *Stripe) GetWebhookSecret() string {
	if cfg == nil {
		return ""
	}
	return util.Or(os.Getenv("STRIPE_WEBHOOK_SECRET"), cfg.WebhookSecret)
}
