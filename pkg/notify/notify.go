// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package notify alerts operators when webhook processing or a provider fails.
package notify

import (
	"fmt"

	"github.com/go-kit/kit/log"
)

type Message struct {
	// Component is where the failure happened, e.g. webhooks-stripe or plaid
	Component string
	Summary   string
	Details   map[string]string
}

type Sender interface {
	Info(msg *Message) error
	Critical(msg *Message) error
}

// logSender writes every Message to the application log.
type logSender struct {
	logger log.Logger
}

func (s *logSender) Info(msg *Message) error {
	return s.logger.Log("notify", fmt.Sprintf("[INFO] %s: %s", msg.Component, msg.Summary), "details", fmt.Sprintf("%v", msg.Details))
}

func (s *logSender) Critical(msg *Message) error {
	return s.logger.Log("notify", fmt.Sprintf("[CRITICAL] %s: %s", msg.Component, msg.Summary), "details", fmt.Sprintf("%v", msg.Details), "level", "error")
}
