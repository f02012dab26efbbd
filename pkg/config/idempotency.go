// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"time"
)

// Idempotency configures where X-Idempotency-Key values are remembered.
// An in-process LRU is used when Redis is nil.
type Idempotency struct {
	Redis *Redis
}

func (cfg Idempotency) Validate() error {
	if r := cfg.Redis; r != nil {
		if r.Address == "" {
			return errors.New("redis: missing address")
		}
		if r.TTL < 0 {
			return errors.New("redis: negative ttl")
		}
	}
	return nil
}

type Redis struct {
	Address  string
	Password string `json:"-"`
	DB       int

	// TTL is how long keys are remembered, defaulting to one day.
	TTL time.Duration
}
