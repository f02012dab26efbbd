// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/moov-io/autopay/pkg/config"

	"github.com/PagerDuty/go-pagerduty"
)

type PagerDuty struct {
	routingKey string
	source     string

	// send is pagerduty.ManageEvent outside of tests
	send func(pagerduty.V2Event) (*pagerduty.V2EventResponse, error)
}

func NewPagerDuty(cfg *config.PagerDuty) (*PagerDuty, error) {
	if cfg == nil {
		return nil, errors.New("nil PagerDuty config")
	}
	if cfg.RoutingKey == "" {
		return nil, errors.New("pagerduty: missing routing key")
	}
	source := cfg.Source
	if source == "" {
		source, _ = os.Hostname()
	}
	return &PagerDuty{
		routingKey: cfg.RoutingKey,
		source:     source,
		send:       pagerduty.ManageEvent,
	}, nil
}

func (pd *PagerDuty) Info(msg *Message) error {
	return pd.trigger("info", msg)
}

func (pd *PagerDuty) Critical(msg *Message) error {
	return pd.trigger("critical", msg)
}

func (pd *PagerDuty) trigger(severity string, msg *Message) error {
	event := pagerduty.V2Event{
		RoutingKey: pd.routingKey,
		Action:     "trigger",
		Client:     "autopay",
		Payload: &pagerduty.V2Payload{
			Summary:   fmt.Sprintf("%s: %s", msg.Component, msg.Summary),
			Source:    pd.source,
			Severity:  severity,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Component: msg.Component,
			Details:   msg.Details,
		},
	}
	if _, err := pd.send(event); err != nil {
		return fmt.Errorf("pagerduty: %v", err)
	}
	return nil
}
