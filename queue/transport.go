// Copyright 2025 Strata Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package queue

import (
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// ConsumerGroup is the shared group name for ingest workers. All workers
// join the same group so each message is delivered to exactly one of them
// at a time.
const ConsumerGroup = "ingest-workers"

func watermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(slog.Default().With("component", "queue"))
}

// NewRedisPublisher creates a durable publisher on Redis Streams.
func NewRedisPublisher(client redis.UniversalClient) (message.Publisher, error) {
	return rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: rstream.DefaultMarshallerUnmarshaller{},
	}, watermillLogger())
}

// NewRedisSubscriber creates a consumer-group subscriber on Redis Streams.
//
// maxIdleTime is the redelivery lease: a message claimed by a consumer but
// not acknowledged within this window is considered abandoned and offered
// to another consumer in the group.
func NewRedisSubscriber(client redis.UniversalClient, consumer string, maxIdleTime time.Duration) (message.Subscriber, error) {
	return rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  rstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: ConsumerGroup,
		Consumer:      consumer,
		MaxIdleTime:   maxIdleTime,
	}, watermillLogger())
}

// NewInMemory creates an in-process pub/sub pair for tests and single-node
// setups. The returned GoChannel serves as both publisher and subscriber.
func NewInMemory() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermillLogger())
}
