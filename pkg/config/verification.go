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

// Verification configures how manually entered bank accounts are verified
// and tokenized before an authorization is created.
type Verification struct {
	ACHQ *ACHQ

	// AllowUnknownAccounts accepts accounts the provider can't confirm as open.
	AllowUnknownAccounts bool

	// SECCode is the Standard Entry Class recorded on new authorizations.
	SECCode string
}

func (cfg Verification) Validate() error {
	switch strings.ToUpper(cfg.SECCode) {
	case "", "WEB", "PPD", "TEL", "CCD":
	default:
		return fmt.Errorf("unsupported SEC code %q", cfg.SECCode)
	}
	return cfg.ACHQ.Validate()
}

type ACHQ struct {
	Endpoint string

	// Provider credentials are only issued to ISOs reselling the gateway.
	ProviderID      string
	ProviderGateID  string
	ProviderGateKey string `json:"-"`

	MerchantID string
	GateID     string
	GateKey    string `json:"-"`

	// TestMode sends every command to the provider's sandbox.
	TestMode bool

	// ExpressVerify asks the provider to check the account is open and in good standing.
	ExpressVerify bool

	// CheckType is Personal or Business
	CheckType string

	Timeout time.Duration
}

func (cfg *ACHQ) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.MerchantID == "" || cfg.GateID == "" || cfg.GetGateKey() == "" {
		return errors.New("achq: missing merchant id, gate id or gate key")
	}
	return nil
}

func (cfg *ACHQ) GetGateKey() string {
	if cfg == nil {
		return ""
	}
	return util.Or(os.Getenv("ACHQ_GATE_KEY"), cfg.GateKey)
}

func (cfg *ACHQ) GetEndpoint() string {
	if cfg == nil {
		return ""
	}
	return util.Or(cfg.Endpoint, "https://www.speedchex.com/datalinks/transact.aspx")
}
