// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package stream exposes gocloud.dev/pubsub and side-loads various packages
// to register implementations such as kafka, nats, rabbitmq or in-memory. Please refer to
// specific documentation for each implementation.
//
//  - https://gocloud.dev/howto/pubsub/publish/
//  - https://gocloud.dev/howto/pubsub/subscribe/
//
// This package is designed as one import to bring in extra dependencies without
// requiring multiple projects to know what imports are needed.
package stream

import (
	"context"
	"crypto/tls"
	"errors"

	"github.com/moov-io/autopay/pkg/config"

	"github.com/Shopify/sarama"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/natspubsub"
	_ "gocloud.dev/pubsub/rabbitpubsub"
)

func Topic(ctx context.Context, url string) (*pubsub.Topic, error) {
	return pubsub.OpenTopic(ctx, url)
}

func Subscription(ctx context.Context, url string) (*pubsub.Subscription, error) {
	return pubsub.OpenSubscription(ctx, url)
}

// OpenTopic opens the topic described by cfg. Kafka is preferred, then the in-memory
// topic, then any other URL registered with gocloud.dev/pubsub.
func OpenTopic(ctx context.Context, cfg *config.SchedulingStream) (*pubsub.Topic, error) {
	if cfg == nil {
		return nil, errors.New("nil stream config")
	}
	if k := cfg.Kafka; k != nil {
		return KafkaTopic(k.Brokers, kafkaConfig(k), k.Topic, nil)
	}
	if cfg.InMem != nil {
		return Topic(ctx, cfg.InMem.URL)
	}
	return Topic(ctx, cfg.URL)
}

func kafkaConfig(cfg *config.KafkaStream) *sarama.Config {
	conf := kafkapubsub.MinimalConfig()
	conf.Version = sarama.V2_0_0_0
	conf.Producer.Return.Successes = true
	if cfg.TLS {
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	return conf
}

// KafkaTopic creates a pubsub.Topic that sends to a Kafka topic. It uses a sarama.SyncProducer to send messages.
// Producer options can be configured in the Producer section of the sarama.Config: https://godoc.org/github.com/Shopify/sarama#Config.
// Config.Producer.Return.Success must be set to true.
func KafkaTopic(brokers []string, config *sarama.Config, topicName string, opts *kafkapubsub.TopicOptions) (*pubsub.Topic, error) {
	return kafkapubsub.OpenTopic(brokers, config, topicName, opts)
}

// KafkaSubscription creates a pubsub.Subscription that joins group, receiving messages from topics.
// It uses a sarama.ConsumerGroup to receive messages.
// Consumer options can be configured in the Consumer section of the sarama.Config: https://godoc.org/github.com/Shopify/sarama#Config.
func KafkaSubscription(brokers []string, config *sarama.Config, group string, topics []string, opts *kafkapubsub.SubscriptionOptions) (*pubsub.Subscription, error) {
	return kafkapubsub.OpenSubscription(brokers, config, group, topics, opts)
}
