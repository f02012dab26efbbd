// Copyright 2019 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"sync"
)

type MockRepository struct {
	Err    error
	Events []*Event

	mu sync.Mutex
}

func (r *MockRepository) GetEvent(eventID string, customerID string) (*Event, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Events {
		if e.ID == eventID && e.CustomerID == customerID {
			return e, nil
		}
	}
	return nil, nil
}

func (r *MockRepository) GetCustomerEvents(customerID string, limit, offset int64) ([]*Event, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, e := range r.Events {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MockRepository) WriteEvent(customerID string, event *Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	event.CustomerID = customerID
	r.Events = append(r.Events, event)
	return nil
}

// Topics returns the topic of each recorded event in order.
func (r *MockRepository) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.Events {
		out = append(out, e.Topic)
	}
	return out
}
