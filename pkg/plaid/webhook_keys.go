// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package plaid

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/moov-io/autopay/pkg/model"
)

// JWK is the public key Plaid signs webhooks with.
type JWK struct {
	Alg       string `json:"alg"`
	Crv       string `json:"crv"`
	KeyID     string `json:"kid"`
	Kty       string `json:"kty"`
	Use       string `json:"use"`
	X         string `json:"x"`
	Y         string `json:"y"`
	CreatedAt int64  `json:"created_at"`
	ExpiredAt *int64 `json:"expired_at"`
}

// PublicKey decodes the P-256 point. Keys which expired before now are refused.
func (k JWK) PublicKey(now time.Time) (*ecdsa.PublicKey, error) {
	if k.Kty != "EC" || k.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported key type %s/%s", k.Kty, k.Crv)
	}
	if k.ExpiredAt != nil && time.Unix(*k.ExpiredAt, 0).Before(now) {
		return nil, fmt.Errorf("key %s expired", k.KeyID)
	}
	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("key %s: x: %v", k.KeyID, err)
	}
	y, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("key %s: y: %v", k.KeyID, err)
	}
	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, fmt.Errorf("key %s is not on P-256", k.KeyID)
	}
	return pub, nil
}

// WebhookVerificationKey returns the key Plaid used to sign webhooks with keyID.
func (p *Plaid) WebhookVerificationKey(ctx context.Context, keyID string) (*ecdsa.PublicKey, error) {
	if keyID == "" {
		return nil, errors.New("missing key ID")
	}
	var resp struct {
		Key JWK `json:"key"`
	}
	err := p.post(ctx, "/webhook_verification_key/get", map[string]interface{}{
		"key_id": keyID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	pub, err := resp.Key.PublicKey(time.Now())
	if err != nil {
		return nil, &model.ExternalLinkError{Provider: providerName, Err: err}
	}
	return pub, nil
}
