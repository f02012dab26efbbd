// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"math"
	"net/http"
	"strconv"

	"github.com/moov-io/autopay/pkg/util"
)

const (
	defaultLimit int64 = 100
	maxLimit     int64 = 1000
)

// ReadOffset returns the "offset" query param, zero when missing or negative.
func ReadOffset(r *http.Request) int64 {
	n, _ := readInt(r, "offset")
	return clamp(n, 0, math.MaxInt64)
}

// ReadLimit returns the "limit" query param capped at 1000, or 100 when it's missing.
func ReadLimit(r *http.Request) int64 {
	n, ok := readInt(r, "limit")
	if !ok || n <= 0 {
		return defaultLimit
	}
	return clamp(n, 1, maxLimit)
}

// ReadFlag reports if the query param named key is set to a truthy value like "yes" or "true".
func ReadFlag(r *http.Request, key string) bool {
	return util.Yes(r.URL.Query().Get(key))
}

func readInt(r *http.Request, key string) (int64, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 32)
	return n, err == nil
}

func clamp(n, min, max int64) int64 {
	switch {
	case n < min:
		return min
	case n > max:
		return max
	}
	return n
}
