// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"sync"
)

type MockSender struct {
	Err error

	mu       sync.Mutex
	infos    []*Message
	critical []*Message
}

func (s *MockSender) Info(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos = append(s.infos, msg)
	return s.Err
}

func (s *MockSender) Critical(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.critical = append(s.critical, msg)
	return s.Err
}

func (s *MockSender) InfoWasCalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.infos) > 0
}

func (s *MockSender) CriticalWasCalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.critical) > 0
}

// CapturedMessage returns the most recent Critical message, or Info if there were none.
func (s *MockSender) CapturedMessage() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.critical); n > 0 {
		return s.critical[n-1]
	}
	if n := len(s.infos); n > 0 {
		return s.infos[n-1]
	}
	return nil
}
