// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
)

type Alerting struct {
	PagerDuty *PagerDuty
}

func (cfg Alerting) Validate() error {
	if cfg.PagerDuty != nil && cfg.PagerDuty.RoutingKey == "" {
		return errors.New("pagerduty: missing routing key")
	}
	return nil
}

type PagerDuty struct {
	// RoutingKey is the Events API v2 integration key
	RoutingKey string `json:"-"`
	Source     string
}
