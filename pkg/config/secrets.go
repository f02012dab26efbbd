// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"

	"github.com/moov-io/autopay/pkg/util"
)

// Secrets configures the keeper which encrypts provider account tokens at rest.
// A local keeper with a static key is used when nothing is configured.
type Secrets struct {
	Local *LocalSecrets
	GCP   *GCPSecrets
}

func (cfg Secrets) Validate() error {
	if cfg.Local != nil && cfg.GCP != nil {
		return errors.New("only one of local or gcp can be configured")
	}
	if cfg.GCP != nil && cfg.GCP.KeyResourceID == "" {
		return errors.New("gcp: missing key resource id")
	}
	return nil
}

type LocalSecrets struct {
	// Base64Key must decode to 32 bytes
	Base64Key string `json:"-"`
}

func (cfg *LocalSecrets) Key() string {
	if cfg == nil {
		return os.Getenv("SECRETS_LOCAL_BASE64_KEY")
	}
	return util.Or(os.Getenv("SECRETS_LOCAL_BASE64_KEY"), cfg.Base64Key)
}

type GCPSecrets struct {
	// KeyResourceID has the form
	// projects/MYPROJECT/locations/MYLOCATION/keyRings/MYKEYRING/cryptoKeys/MYKEY
	KeyResourceID string
}
