// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/autopay/pkg/config"

	"gocloud.dev/secrets"
	"gocloud.dev/secrets/gcpkms"
	"gocloud.dev/secrets/localsecrets"
)

var (
	ErrNoKeeper   = errors.New("no secrets keeper configured")
	ErrEmptyToken = errors.New("empty account token")
)

// TokenKeeper seals provider account tokens (ACHQ tokens, Plaid processor tokens)
// before they're stored on an authorization. Sealed tokens are base64.StdEncoding
// strings so they fit in a varchar column.
type TokenKeeper struct {
	keeper  *secrets.Keeper
	timeout time.Duration
}

// NewTokenKeeper opens the configured Keeper. GCP KMS is used when configured,
// otherwise a local keeper.
func NewTokenKeeper(ctx context.Context, cfg config.Secrets, timeout time.Duration) (*TokenKeeper, error) {
	keeper, err := OpenSecretKeeper(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &TokenKeeper{keeper: keeper, timeout: timeout}, nil
}

func (tk *TokenKeeper) Close() error {
	if tk == nil || tk.keeper == nil {
		return nil
	}
	return tk.keeper.Close()
}

func (tk *TokenKeeper) Seal(ctx context.Context, token string) (string, error) {
	if tk == nil || tk.keeper == nil {
		return "", ErrNoKeeper
	}
	if token == "" {
		return "", ErrEmptyToken
	}

	ctx, cancelFn := context.WithTimeout(ctx, tk.timeout)
	defer cancelFn()

	bs, err := tk.keeper.Encrypt(ctx, []byte(token))
	if err != nil {
		return "", fmt.Errorf("sealing token: %v", err)
	}
	return base64.StdEncoding.EncodeToString(bs), nil
}

// Open returns the plaintext of a token previously returned by Seal.
func (tk *TokenKeeper) Open(ctx context.Context, sealed string) (string, error) {
	if tk == nil || tk.keeper == nil {
		return "", ErrNoKeeper
	}

	ctx, cancelFn := context.WithTimeout(ctx, tk.timeout)
	defer cancelFn()

	bs, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding sealed token: %v", err)
	}
	bs, err = tk.keeper.Decrypt(ctx, bs)
	if err != nil {
		return "", fmt.Errorf("opening token: %v", err)
	}
	return string(bs), nil
}

// OpenSecretKeeper returns a Go Cloud Development Kit (Go CDK) Keeper.
// Checkout https://gocloud.dev/ref/secrets/ for more details.
func OpenSecretKeeper(ctx context.Context, cfg config.Secrets) (*secrets.Keeper, error) {
	if cfg.GCP != nil {
		return openGCPKMS(ctx, cfg.GCP.KeyResourceID)
	}
	return OpenLocal(cfg.Local.Key())
}

// OpenLocal returns an inmemory Keeper. base64Key must decode to 32 bytes,
// and a static development key is used when it's empty.
func OpenLocal(base64Key string) (*secrets.Keeper, error) {
	if base64Key == "" {
		base64Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("1"), 32))
	}
	key, err := localsecrets.Base64Key(base64Key)
	if err != nil {
		return nil, fmt.Errorf("problem reading SECRETS_LOCAL_BASE64_KEY: %v", err)
	}
	return localsecrets.NewKeeper(key), nil
}

// openGCPKMS returns a Google Cloud Key Management Service Keeper. The resource ID has the form
//  'projects/MYPROJECT/locations/MYLOCATION/keyRings/MYKEYRING/cryptoKeys/MYKEY'
func openGCPKMS(ctx context.Context, resourceID string) (*secrets.Keeper, error) {
	ctx, cancelFn := context.WithTimeout(ctx, 10*time.Second)
	defer cancelFn()

	client, _, err := gcpkms.Dial(ctx, nil)
	if err != nil {
		return nil, err
	}
	return gcpkms.OpenKeeper(client, resourceID, nil), nil
}
