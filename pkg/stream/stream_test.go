// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"testing"

	"github.com/moov-io/autopay/pkg/config"

	"gocloud.dev/pubsub"
)

func TestStream(t *testing.T) {
	topicURL := "mem://autopay"
	ctx := context.Background()

	topic, err := Topic(ctx, topicURL)
	if err != nil {
		t.Fatal(err)
	}
	defer topic.Shutdown(ctx)

	sub, err := Subscription(ctx, topicURL)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Shutdown(ctx)

	// quick send and receive
	send(ctx, topic, "hello, world")
	if msg, err := receive(ctx, sub); err == nil {
		if msg != "hello, world" {
			t.Errorf("got %q", msg)
		}
	} else {
		t.Fatal(err)
	}
}

func TestOpenTopic(t *testing.T) {
	ctx := context.Background()

	if _, err := OpenTopic(ctx, nil); err == nil {
		t.Error("expected error")
	}

	topic, err := OpenTopic(ctx, &config.SchedulingStream{
		InMem: &config.InMemStream{URL: "mem://open-topic"},
	})
	if err != nil {
		t.Fatal(err)
	}
	topic.Shutdown(ctx)

	topic, err = OpenTopic(ctx, &config.SchedulingStream{URL: "mem://other-topic"})
	if err != nil {
		t.Fatal(err)
	}
	topic.Shutdown(ctx)

	if _, err := OpenTopic(ctx, &config.SchedulingStream{URL: "unknown://topic"}); err == nil {
		t.Error("expected error")
	}
}

func TestKafkaConfig(t *testing.T) {
	conf := kafkaConfig(&config.KafkaStream{TLS: true})
	if !conf.Producer.Return.Successes {
		t.Error("kafkapubsub needs successes returned")
	}
	if !conf.Net.TLS.Enable || conf.Net.TLS.Config == nil {
		t.Error("expected TLS")
	}
}

func send(ctx context.Context, t *pubsub.Topic, body string) *pubsub.Message {
	msg := &pubsub.Message{
		Body:     []byte(body),
		Metadata: make(map[string]string),
	}
	t.Send(ctx, msg)
	return msg
}

func receive(ctx context.Context, t *pubsub.Subscription) (string, error) {
	msg, err := t.Receive(ctx)
	if err != nil {
		return "", err
	}
	msg.Ack()
	return string(msg.Body), nil
}
