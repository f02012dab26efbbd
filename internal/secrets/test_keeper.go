// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"
)

var (
	testSecretKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("2"), 32))
)

// TestTokenKeeper returns a local TokenKeeper for tests.
func TestTokenKeeper(t *testing.T) *TokenKeeper {
	t.Helper()
	keeper, err := OpenLocal(testSecretKey)
	if err != nil {
		t.Fatal(err)
	}
	return &TokenKeeper{keeper: keeper, timeout: 1 * time.Second}
}
