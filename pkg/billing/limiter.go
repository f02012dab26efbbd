// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"context"
	"sync"
	"time"
)

// Limiter throttles invoice creation. Claim returns false while an earlier
// claim on key is younger than window.
type Limiter interface {
	Claim(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type memoryLimiter struct {
	mu     sync.Mutex
	claims map[string]time.Time

	now func() time.Time
}

func newMemoryLimiter() *memoryLimiter {
	return &memoryLimiter{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (l *memoryLimiter) Claim(_ context.Context, key string, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, expires := range l.claims {
		if !now.Before(expires) {
			delete(l.claims, k)
		}
	}
	if _, exists := l.claims[key]; exists {
		return false, nil
	}
	l.claims[key] = now.Add(window)
	return true, nil
}

func (l *memoryLimiter) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claims, key)
	return nil
}
