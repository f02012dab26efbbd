// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/moov-io/autopay/pkg/util"
)

// Linking configures the account-linking provider. Linking is unavailable when Plaid is nil.
type Linking struct {
	Plaid *Plaid
}

func (cfg Linking) Validate() error {
	return cfg.Plaid.Validate()
}

type Plaid struct {
	ClientID string
	Secret   string `json:"-"`

	// Environment is one of sandbox, development or production
	Environment string

	// ClientName is shown to customers inside the linking widget.
	ClientName string

	// WebhookURL is sent with link tokens so item updates reach us.
	WebhookURL string

	Timeout time.Duration
}

func (cfg *Plaid) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.ClientID == "" || cfg.GetSecret() == "" {
		return errors.New("plaid: missing client id or secret")
	}
	switch strings.ToLower(cfg.Environment) {
	case "", "sandbox", "development", "production":
	default:
		return fmt.Errorf("plaid: unknown environment %q", cfg.Environment)
	}
	return nil
}

func (cfg *Plaid) GetSecret() string {
	if cfg == nil {
		return ""
	}
	return util.Or(os.Getenv("PLAID_SECRET"), cfg.Secret)
}

// BaseURL returns the Plaid API host for the configured environment.
func (cfg *Plaid) BaseURL() string {
	switch strings.ToLower(cfg.Environment) {
	case "production":
		return "https://production.plaid.com"
	case "development":
		return "https://development.plaid.com"
	}
	return "https://sandbox.plaid.com"
}
