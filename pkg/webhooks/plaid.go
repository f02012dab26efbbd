// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/moov-io/autopay/pkg/lifecycle"
	"github.com/moov-io/autopay/pkg/model"
)

const providerPlaid = "plaid"

type PlaidWebhook struct {
	WebhookType string      `json:"webhook_type"`
	WebhookCode string      `json:"webhook_code"`
	ItemID      string      `json:"item_id"`
	Error       *PlaidError `json:"error"`
}

type PlaidError struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (w PlaidWebhook) eventType() string {
	if w.Error != nil && w.Error.ErrorCode != "" {
		return fmt.Sprintf("%s.%s.%s", w.WebhookType, w.WebhookCode, w.Error.ErrorCode)
	}
	return fmt.Sprintf("%s.%s", w.WebhookType, w.WebhookCode)
}

// target returns the status an item's authorizations move to, if any.
func (w PlaidWebhook) target() (model.Status, bool) {
	if w.WebhookType != "ITEM" {
		return "", false
	}
	switch w.WebhookCode {
	case "USER_PERMISSION_REVOKED":
		return model.StatusRevoked, true
	case "PENDING_EXPIRATION":
		return model.StatusPaused, true
	case "ERROR":
		if w.Error != nil && w.Error.ErrorCode == "ITEM_LOGIN_REQUIRED" {
			return model.StatusPaused, true
		}
	}
	return "", false
}

// HandlePlaid verifies payload against the Plaid-Verification header and applies an
// item webhook to every authorization linked through the item. Plaid doesn't send
// event IDs so the payload's digest is used.
func (p *Processor) HandlePlaid(ctx context.Context, payload []byte, verification string) (*Result, error) {
	if err := p.plaid.verify(ctx, payload, verification); err != nil {
		return nil, err
	}

	var hook PlaidWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, &model.ValidationError{Field: "body", Message: err.Error()}
	}
	if hook.WebhookType == "" || hook.WebhookCode == "" {
		return nil, &model.ValidationError{Field: "webhook_code", Message: "missing webhook type or code"}
	}
	sum := sha256.Sum256(payload)
	eventID := hex.EncodeToString(sum[:])

	return p.process(providerPlaid, eventID, hook.eventType(), func() (string, error) {
		return p.applyPlaidWebhook(ctx, hook)
	})
}

func (p *Processor) applyPlaidWebhook(ctx context.Context, hook PlaidWebhook) (string, error) {
	target, ok := hook.target()
	if !ok || hook.ItemID == "" {
		return ActionIgnored, nil
	}
	auths, err := p.auths.FindByExternalItem(hook.ItemID)
	if err != nil {
		return "", err
	}

	reason := fmt.Sprintf("plaid %s", hook.eventType())
	var applied int
	for i := range auths {
		if auths[i].Status == model.StatusRevoked {
			continue
		}
		_, err := p.controller.Apply(ctx, lifecycle.Command{
			AuthorizationID: auths[i].ID,
			Target:          target,
			Reason:          reason,
		})
		if err != nil {
			return "", fmt.Errorf("authorization=%s: %w", auths[i].ID, err)
		}
		applied++
	}
	if applied == 0 {
		return ActionIgnored, nil
	}
	if target == model.StatusRevoked {
		return ActionRevoked, nil
	}
	return ActionPaused, nil
}
