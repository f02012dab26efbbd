// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// AccountNumber returns a hex encoded SHA-256 of the routing and account numbers.
// Digits only are hashed so formatting differences don't produce new values.
func AccountNumber(routingNumber, accountNumber string) (string, error) {
	ss := sha256.New()
	n, err := ss.Write([]byte(digits(routingNumber) + ":" + digits(accountNumber)))
	if n <= 1 || err != nil {
		return "", fmt.Errorf("sha256: n=%d: %v", n, err)
	}
	return hex.EncodeToString(ss.Sum(nil)), nil
}

func digits(in string) string {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] >= '0' && in[i] <= '9' {
			out = append(out, in[i])
		}
	}
	return string(out)
}
