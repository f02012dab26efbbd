// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package scheduling signals the payment execution system when autopay for an
// authorization must be suspended, resumed or cancelled. The payment system
// owns the schedules, so each signal is a message on a pubsub topic.
package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/stream"

	"github.com/moov-io/base"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"gocloud.dev/pubsub"
)

type Signal string

const (
	SignalSuspend Signal = "suspend"
	SignalResume  Signal = "resume"
	SignalCancel  Signal = "cancel"
)

// Message is the body of every published signal.
type Message struct {
	ID              string    `json:"id"`
	Signal          Signal    `json:"signal"`
	AuthorizationID string    `json:"authorizationID"`
	CustomerID      string    `json:"customerID"`
	Reason          string    `json:"reason,omitempty"`
	Sent            time.Time `json:"sent"`
}

type Publisher interface {
	SuspendScheduledPayments(ctx context.Context, auth *model.Authorization, reason string) error
	ResumeScheduledPayments(ctx context.Context, auth *model.Authorization) error
	CancelScheduledPayments(ctx context.Context, auth *model.Authorization, reason string) error
}

var (
	signalsPublished = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "scheduling_signals_published",
		Help: "Counter of signals sent to the payment scheduling system",
	}, []string{"signal", "outcome"})
)

func NewPublisher(ctx context.Context, logger log.Logger, cfg config.Scheduling) (*StreamPublisher, error) {
	topic, err := stream.OpenTopic(ctx, cfg.Stream)
	if err != nil {
		return nil, fmt.Errorf("scheduling: opening topic: %w", err)
	}
	return &StreamPublisher{logger: logger, topic: topic}, nil
}

type StreamPublisher struct {
	logger log.Logger
	topic  *pubsub.Topic
}

func (p *StreamPublisher) SuspendScheduledPayments(ctx context.Context, auth *model.Authorization, reason string) error {
	return p.send(ctx, SignalSuspend, auth, reason)
}

func (p *StreamPublisher) ResumeScheduledPayments(ctx context.Context, auth *model.Authorization) error {
	return p.send(ctx, SignalResume, auth, "")
}

func (p *StreamPublisher) CancelScheduledPayments(ctx context.Context, auth *model.Authorization, reason string) error {
	return p.send(ctx, SignalCancel, auth, reason)
}

func (p *StreamPublisher) send(ctx context.Context, signal Signal, auth *model.Authorization, reason string) error {
	msg := Message{
		ID:              base.ID(),
		Signal:          signal,
		AuthorizationID: auth.ID,
		CustomerID:      auth.CustomerID,
		Reason:          reason,
		Sent:            time.Now().UTC(),
	}
	bs, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = p.topic.Send(ctx, &pubsub.Message{
		Body: bs,
		Metadata: map[string]string{
			"signal":          string(signal),
			"authorizationID": auth.ID,
		},
	})
	if err != nil {
		signalsPublished.With("signal", string(signal), "outcome", "error").Add(1)
		return fmt.Errorf("scheduling: %s %s: %w", signal, auth.ID, err)
	}
	signalsPublished.With("signal", string(signal), "outcome", "sent").Add(1)
	p.logger.Log("scheduling", fmt.Sprintf("sent %s signal", signal), "authorizationID", auth.ID, "customerID", auth.CustomerID)
	return nil
}

func (p *StreamPublisher) Shutdown(ctx context.Context) error {
	if p == nil || p.topic == nil {
		return nil
	}
	return p.topic.Shutdown(ctx)
}

// Decode reads a Message published by StreamPublisher.
func Decode(msg *pubsub.Message) (*Message, error) {
	var out Message
	if err := json.Unmarshal(msg.Body, &out); err != nil {
		return nil, fmt.Errorf("scheduling: decode: %w", err)
	}
	return &out, nil
}
