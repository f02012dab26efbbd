// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
)

// Scheduling configures where suspend, resume and cancel signals for
// scheduled autopay debits are published.
type Scheduling struct {
	Stream *SchedulingStream
}

func (cfg Scheduling) Validate() error {
	return cfg.Stream.Validate()
}

type SchedulingStream struct {
	InMem *InMemStream
	Kafka *KafkaStream

	// URL opens any other gocloud.dev/pubsub topic, such as nats:// or rabbit://
	URL string
}

func (cfg *SchedulingStream) Validate() error {
	if cfg == nil {
		return errors.New("missing stream")
	}
	if cfg.InMem != nil && cfg.InMem.URL == "" {
		return errors.New("inmem: missing stream url")
	}
	if k := cfg.Kafka; k != nil {
		if len(k.Brokers) == 0 || k.Topic == "" {
			return errors.New("kafka: missing brokers or topic")
		}
	}
	if cfg.InMem == nil && cfg.Kafka == nil && cfg.URL == "" {
		return errors.New("no stream configured")
	}
	return nil
}

type InMemStream struct {
	URL string
}

type KafkaStream struct {
	Brokers []string
	Topic   string
	TLS     bool
}
