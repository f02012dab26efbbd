// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achq

import (
	"context"
	"sync"
)

type MockClient struct {
	Verification *Verification
	Err          error

	mu       sync.Mutex
	Requests []VerifyRequest
}

func (c *MockClient) Verify(_ context.Context, req VerifyRequest) (*Verification, error) {
	c.mu.Lock()
	c.Requests = append(c.Requests, req)
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	return c.Verification, nil
}
