// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/stream"

	"github.com/moov-io/base"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
)

func TestStreamPublisher(t *testing.T) {
	ctx := context.Background()
	url := "mem://scheduling-test"

	pub, err := NewPublisher(ctx, log.NewNopLogger(), config.Scheduling{
		Stream: &config.SchedulingStream{
			InMem: &config.InMemStream{URL: url},
		},
	})
	require.NoError(t, err)
	defer pub.Shutdown(ctx)

	// mem:// subscriptions need their topic opened first
	sub, err := stream.Subscription(ctx, url)
	require.NoError(t, err)
	defer sub.Shutdown(ctx)

	auth := &model.Authorization{ID: base.ID(), CustomerID: base.ID()}
	require.NoError(t, pub.SuspendScheduledPayments(ctx, auth, "vacation"))
	require.NoError(t, pub.ResumeScheduledPayments(ctx, auth))
	require.NoError(t, pub.CancelScheduledPayments(ctx, auth, "closed"))

	for _, expected := range []Signal{SignalSuspend, SignalResume, SignalCancel} {
		msg, err := sub.Receive(ctx)
		require.NoError(t, err)
		msg.Ack()

		require.Equal(t, string(expected), msg.Metadata["signal"])
		decoded, err := Decode(msg)
		require.NoError(t, err)
		require.Equal(t, expected, decoded.Signal)
		require.Equal(t, auth.ID, decoded.AuthorizationID)
		require.Equal(t, auth.CustomerID, decoded.CustomerID)
	}
}

func TestNewPublisher__err(t *testing.T) {
	_, err := NewPublisher(context.Background(), log.NewNopLogger(), config.Scheduling{})
	require.Error(t, err)
}

func TestMockPublisher(t *testing.T) {
	pub := &MockPublisher{}
	auth := &model.Authorization{ID: base.ID()}

	require.NoError(t, pub.SuspendScheduledPayments(context.Background(), auth, ""))
	require.NoError(t, pub.CancelScheduledPayments(context.Background(), auth, ""))
	require.Equal(t, []Signal{SignalSuspend, SignalCancel}, pub.Signals())

	pub.Err = errors.New("bad error")
	require.Error(t, pub.ResumeScheduledPayments(context.Background(), auth))
}
