package kafka

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/confluentinc/confluent-kafka-go/schemaregistry"
	"github.com/confluentinc/confluent-kafka-go/schemaregistry/serde"
	"github.com/confluentinc/confluent-kafka-go/schemaregistry/serde/protobuf"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	defaultSessionTimeout = 6000
	pollTimeout           = time.Second
)

// MessageHandler receives every deserialized message with its offset
type MessageHandler func(message interface{}, offset int64)

type SRConsumer interface {
	Run(ctx context.Context, messageType protoreflect.MessageType, topic string, handle MessageHandler) error
	Close()
}

type srConsumer struct {
	consumer     *kafka.Consumer
	deserializer *protobuf.Deserializer
}

func NewConsumer(kafkaURL, srURL string, groupID string) (SRConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  kafkaURL,
		"group.id":           groupID,
		"session.timeout.ms": defaultSessionTimeout,
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, err
	}

	sr, err := schemaregistry.NewClient(schemaregistry.NewConfig(srURL))
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	d, err := protobuf.NewDeserializer(sr, serde.ValueSerde, protobuf.NewDeserializerConfig())
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &srConsumer{
		consumer:     c,
		deserializer: d,
	}, nil
}

// Run consumes topic until ctx ends, committing each message after handle returns
func (c *srConsumer) Run(ctx context.Context, messageType protoreflect.MessageType, topic string, handle MessageHandler) error {
	if err := c.consumer.SubscribeTopics([]string{topic}, nil); err != nil {
		return err
	}
	if err := c.deserializer.ProtoRegistry.RegisterMessage(messageType); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		kafkaMsg, err := c.consumer.ReadMessage(pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			return err
		}
		msg, err := c.deserializer.Deserialize(topic, kafkaMsg.Value)
		if err != nil {
			return err
		}
		handle(msg, int64(kafkaMsg.TopicPartition.Offset))
		if _, err = c.consumer.CommitMessage(kafkaMsg); err != nil {
			return err
		}
	}
}

func (c *srConsumer) Close() {
	if err := c.consumer.Close(); err != nil {
		log.Printf("kafka: failed to close consumer: %v", err)
	}
	c.deserializer.Close()
}
