// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package plaid

import (
	"context"
	"crypto/ecdsa"
	"fmt"
)

type MockClient struct {
	LinkToken   *LinkToken
	Account     *Account
	WebhookKeys map[string]*ecdsa.PublicKey
	Err         error

	Exchanged []string
}

func (c *MockClient) CreateLinkToken(_ context.Context, customerID string) (*LinkToken, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.LinkToken, nil
}

func (c *MockClient) ExchangePublicToken(_ context.Context, publicToken, accountID string) (*Account, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.Exchanged = append(c.Exchanged, publicToken)
	return c.Account, nil
}

func (c *MockClient) WebhookVerificationKey(_ context.Context, keyID string) (*ecdsa.PublicKey, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if key, ok := c.WebhookKeys[keyID]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown key %s", keyID)
}
