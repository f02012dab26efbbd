// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package scheduling

import (
	"context"
	"sync"

	"github.com/moov-io/autopay/pkg/model"
)

// MockPublisher records every signal instead of publishing it.
type MockPublisher struct {
	Err error

	mu       sync.Mutex
	Messages []Message
}

func (p *MockPublisher) SuspendScheduledPayments(_ context.Context, auth *model.Authorization, reason string) error {
	return p.record(SignalSuspend, auth, reason)
}

func (p *MockPublisher) ResumeScheduledPayments(_ context.Context, auth *model.Authorization) error {
	return p.record(SignalResume, auth, "")
}

func (p *MockPublisher) CancelScheduledPayments(_ context.Context, auth *model.Authorization, reason string) error {
	return p.record(SignalCancel, auth, reason)
}

func (p *MockPublisher) record(signal Signal, auth *model.Authorization, reason string) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Message{
		Signal:          signal,
		AuthorizationID: auth.ID,
		CustomerID:      auth.CustomerID,
		Reason:          reason,
	})
	return nil
}

// Signals returns the recorded signals in order.
func (p *MockPublisher) Signals() []Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Signal
	for i := range p.Messages {
		out = append(out, p.Messages[i].Signal)
	}
	return out
}
