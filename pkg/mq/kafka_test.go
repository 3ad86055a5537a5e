package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKafkaPublisherPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got map[string]any
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got["event_type"] != "member_added" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	pub := NewKafkaPublisherWithProducer(producer, "movienight.group-activity", zap.NewNop())
	err := pub.Publish(context.Background(), "group-1", map[string]string{"event_type": "member_added"})
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherWithProducer(producer, "topic", nil)
	err := pub.Publish(context.Background(), "k", map[string]int{"a": 1})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherRejectsUnencodable(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := NewKafkaPublisherWithProducer(producer, "topic", nil)

	err := pub.Publish(context.Background(), "k", make(chan int))
	assert.ErrorContains(t, err, "failed to encode event")
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherCanceledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := NewKafkaPublisherWithProducer(producer, "topic", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Publish(ctx, "k", "v"), context.Canceled)
	require.NoError(t, pub.Close())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "k", "v"))
	assert.NoError(t, p.Close())
}
