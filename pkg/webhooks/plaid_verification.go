// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package webhooks

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moov-io/autopay/pkg/model"

	"github.com/golang-jwt/jwt/v5"
)

// PlaidKeys looks up the keys Plaid signs webhooks with.
type PlaidKeys interface {
	WebhookVerificationKey(ctx context.Context, keyID string) (*ecdsa.PublicKey, error)
}

const (
	plaidVerificationHeader = "Plaid-Verification"

	// Plaid asks receivers to refuse webhooks signed more than five minutes ago.
	plaidMaxWebhookAge = 5 * time.Minute
	plaidClockSkew     = 10 * time.Second
)

type plaidClaims struct {
	BodySHA256 string `json:"request_body_sha256"`
	jwt.RegisteredClaims
}

// plaidVerifier checks the Plaid-Verification JWT against the webhook body.
// Keys are cached by ID once fetched.
type plaidVerifier struct {
	keys PlaidKeys

	mu    sync.Mutex
	cache map[string]*ecdsa.PublicKey

	now func() time.Time
}

func newPlaidVerifier(keys PlaidKeys) *plaidVerifier {
	return &plaidVerifier{
		keys:  keys,
		cache: make(map[string]*ecdsa.PublicKey),
		now:   time.Now,
	}
}

func (v *plaidVerifier) verify(ctx context.Context, payload []byte, token string) error {
	if v == nil || v.keys == nil {
		return &model.ValidationError{Field: plaidVerificationHeader, Message: "plaid webhooks are not configured"}
	}
	if token == "" {
		return &model.ValidationError{Field: plaidVerificationHeader, Message: "missing signature"}
	}

	var claims plaidClaims
	var lookupErr error
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, err := v.key(ctx, kid)
		lookupErr = err
		return key, err
	}, jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}), jwt.WithIssuedAt(), jwt.WithLeeway(plaidClockSkew), jwt.WithTimeFunc(v.now))
	if err != nil {
		// an unreachable Plaid shouldn't read as a bad signature
		var external *model.ExternalLinkError
		if errors.As(lookupErr, &external) {
			return external
		}
		return &model.ValidationError{Field: plaidVerificationHeader, Message: err.Error()}
	}

	if claims.IssuedAt == nil || v.now().Sub(claims.IssuedAt.Time) > plaidMaxWebhookAge {
		return &model.ValidationError{Field: plaidVerificationHeader, Message: "signature is too old"}
	}
	sum := sha256.Sum256(payload)
	if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(claims.BodySHA256)) != 1 {
		return &model.ValidationError{Field: plaidVerificationHeader, Message: "body does not match signature"}
	}
	return nil
}

func (v *plaidVerifier) key(ctx context.Context, keyID string) (*ecdsa.PublicKey, error) {
	v.mu.Lock()
	key, ok := v.cache[keyID]
	v.mu.Unlock()
	if ok {
		return key, nil
	}

	key, err := v.keys.WebhookVerificationKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("plaid key %s: %w", keyID, err)
	}
	v.mu.Lock()
	v.cache[keyID] = key
	v.mu.Unlock()
	return key, nil
}
