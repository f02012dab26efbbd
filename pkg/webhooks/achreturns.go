// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package webhooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/notify"

	"github.com/moov-io/ach"
)

const providerACH = "ach"

// revokingReturnCodes mean the account can't be debited again.
var revokingReturnCodes = map[string]bool{
	"R02": true, // account closed
	"R03": true, // no account
	"R04": true, // invalid account number
	"R07": true, // authorization revoked by customer
	"R08": true, // payment stopped
	"R10": true, // customer advises not authorized
	"R16": true, // account frozen
	"R20": true, // non-transaction account
	"R29": true, // corporate customer advises not authorized
}

// ACHReturn is a returned debit reported by the scheduling system.
type ACHReturn struct {
	EventID         string `json:"eventID"`
	AuthorizationID string `json:"authorizationID"`
	ReturnCode      string `json:"returnCode"`
	TraceNumber     string `json:"traceNumber"`
}

func (r ACHReturn) validate() (*ach.ReturnCode, error) {
	if r.EventID == "" {
		return nil, &model.ValidationError{Field: "eventID", Message: "missing event ID"}
	}
	if r.AuthorizationID == "" {
		return nil, &model.ValidationError{Field: "authorizationID", Message: "missing authorization ID"}
	}
	code := ach.LookupReturnCode(strings.ToUpper(strings.TrimSpace(r.ReturnCode)))
	if code == nil {
		return nil, &model.ValidationError{Field: "returnCode", Message: fmt.Sprintf("unknown return code %q", r.ReturnCode)}
	}
	return code, nil
}

// HandleACHReturn revokes the authorization behind a return whose code forbids further debits.
func (p *Processor) HandleACHReturn(ctx context.Context, ret ACHReturn) (*Result, error) {
	code, err := ret.validate()
	if err != nil {
		return nil, err
	}
	return p.process(providerACH, ret.EventID, code.Code, func() (string, error) {
		if !revokingReturnCodes[code.Code] {
			if p.alerts != nil {
				p.alerts.Info(&notify.Message{
					Component: "webhooks-ach",
					Summary:   fmt.Sprintf("%s return (%s) on authorization %s", code.Code, code.Reason, ret.AuthorizationID),
					Details: map[string]string{
						"authorizationID": ret.AuthorizationID,
						"traceNumber":     ret.TraceNumber,
					},
				})
			}
			return ActionIgnored, nil
		}
		reason := fmt.Sprintf("ACH return %s: %s", code.Code, code.Reason)
		if _, err := p.controller.Revoke(ctx, ret.AuthorizationID, reason); err != nil {
			if model.IsNotFound(err) {
				// debits autopay didn't originate
				p.logger.Log("webhooks", fmt.Sprintf("unknown authorization=%s for %s return", ret.AuthorizationID, code.Code), "eventID", ret.EventID)
				return ActionIgnored, nil
			}
			return "", err
		}
		return ActionRevoked, nil
	})
}
