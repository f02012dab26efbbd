// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"errors"
	"testing"

	"github.com/moov-io/autopay/pkg/config"

	"github.com/PagerDuty/go-pagerduty"
)

func TestPagerDuty(t *testing.T) {
	if _, err := NewPagerDuty(&config.PagerDuty{}); err == nil {
		t.Error("expected error")
	}

	pd, err := NewPagerDuty(&config.PagerDuty{RoutingKey: "key", Source: "autopay-test"})
	if err != nil {
		t.Fatal(err)
	}

	var events []pagerduty.V2Event
	pd.send = func(e pagerduty.V2Event) (*pagerduty.V2EventResponse, error) {
		events = append(events, e)
		return &pagerduty.V2EventResponse{Status: "success"}, nil
	}

	msg := &Message{
		Component: "webhooks-stripe",
		Summary:   "problem processing invoice.paid",
		Details:   map[string]string{"eventID": "evt_123"},
	}
	if err := pd.Info(msg); err != nil {
		t.Fatal(err)
	}
	if err := pd.Critical(msg); err != nil {
		t.Fatal(err)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[1].RoutingKey != "key" || events[1].Action != "trigger" {
		t.Errorf("unexpected event: %#v", events[1])
	}
	if p := events[1].Payload; p.Severity != "critical" || p.Source != "autopay-test" {
		t.Errorf("unexpected payload: %#v", p)
	}

	pd.send = func(e pagerduty.V2Event) (*pagerduty.V2EventResponse, error) {
		return nil, errors.New("bad error")
	}
	if err := pd.Critical(msg); err == nil {
		t.Error("expected error")
	}
}
