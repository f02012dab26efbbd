// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"fmt"

	"github.com/moov-io/autopay/pkg/config"

	"github.com/go-kit/kit/log"
)

// MultiSender is a Sender which will attempt to send each Message to every
// included Sender and returns the first error encountered. Messages are always logged.
type MultiSender struct {
	logger  log.Logger
	senders []Sender
}

func NewMultiSender(logger log.Logger, cfg config.Alerting) (*MultiSender, error) {
	ms := &MultiSender{
		logger:  logger,
		senders: []Sender{&logSender{logger: logger}},
	}
	if cfg.PagerDuty != nil {
		sender, err := NewPagerDuty(cfg.PagerDuty)
		if err != nil {
			return nil, err
		}
		ms.senders = append(ms.senders, sender)
	}
	return ms, nil
}

func (ms *MultiSender) Info(msg *Message) error {
	if ms == nil {
		return nil
	}
	var firstError error
	for i := range ms.senders {
		if err := ms.senders[i].Info(msg); err != nil {
			ms.logger.Log("notify", fmt.Sprintf("multi-sender: Info %T: %v", ms.senders[i], err))

			if firstError == nil {
				firstError = err
			}
		}
	}
	return firstError
}

func (ms *MultiSender) Critical(msg *Message) error {
	if ms == nil {
		return nil
	}
	var firstError error
	for i := range ms.senders {
		if err := ms.senders[i].Critical(msg); err != nil {
			ms.logger.Log("notify", fmt.Sprintf("multi-sender: Critical %T: %v", ms.senders[i], err))

			if firstError == nil {
				firstError = err
			}
		}
	}
	return firstError
}
