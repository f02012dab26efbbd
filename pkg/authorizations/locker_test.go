// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package authorizations

import (
	"sync"
	"testing"
	"time"
)

func TestLocker(t *testing.T) {
	locker := NewLocker()

	var wg sync.WaitGroup
	var mu sync.Mutex
	inside, maxInside := 0, 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("customer")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("%d goroutines held the same customer", maxInside)
	}
	if n := locker.held(); n != 0 {
		t.Errorf("leaked %d locks", n)
	}
}

func TestLocker__differentCustomers(t *testing.T) {
	locker := NewLocker()

	unlockA := locker.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locker.Lock("b")
		unlock()
		unlock() // extra calls are ignored
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("customer b was blocked by customer a")
	}
}
