// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package authorizations

import (
	"sync"
)

// Locker serializes mutations of a customer's authorizations. Different
// customers never block each other.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*customerLock
}

type customerLock struct {
	sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]*customerLock),
	}
}

// Lock blocks until customerID is held by the caller. The returned func
// releases it and must be called exactly once.
func (l *Locker) Lock(customerID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*customerLock)
	}
	cl, exists := l.locks[customerID]
	if !exists {
		cl = &customerLock{}
		l.locks[customerID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			cl.Unlock()

			l.mu.Lock()
			cl.refs--
			if cl.refs == 0 {
				delete(l.locks, customerID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
