package producers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
	"github.com/yoshapihoff/bricks/authenticator/internal/events"
	"github.com/yoshapihoff/bricks/authenticator/internal/kafka"
	"google.golang.org/protobuf/types/known/structpb"
)

// AccountEventProducer forwards account events to Kafka
type AccountEventProducer struct {
	srProducer kafka.SRProducer
	topic      string
}

func NewAccountEventProducer(kafkaURL, schemaRegistryURL, topic string) (*AccountEventProducer, error) {
	srProducer, err := kafka.NewProducer(kafkaURL, schemaRegistryURL)
	if err != nil {
		return nil, err
	}
	return NewAccountEventProducerWith(srProducer, topic), nil
}

func NewAccountEventProducerWith(srProducer kafka.SRProducer, topic string) *AccountEventProducer {
	return &AccountEventProducer{
		srProducer: srProducer,
		topic:      topic,
	}
}

func (p *AccountEventProducer) ProduceAccountEvent(ev events.AccountEvent) (int64, error) {
	msg, err := EncodeAccountEvent(ev)
	if err != nil {
		return -1, err
	}
	return p.srProducer.ProduceMessage(msg, p.topic)
}

// Run forwards bus events until ctx ends. The bus subscription is released on return.
func (p *AccountEventProducer) Run(ctx context.Context, bus *events.Bus) {
	ch, release := bus.Subscribe(ctx)
	defer release()

	for ev := range ch {
		if _, err := p.ProduceAccountEvent(ev); err != nil {
			log.Printf("Failed to produce %s event for %s: %v", ev.Action, ev.AccountName, err)
		}
	}
}

func (p *AccountEventProducer) Close() {
	p.srProducer.Close()
}

// EncodeAccountEvent converts an event into the wire message
func EncodeAccountEvent(ev events.AccountEvent) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(map[string]interface{}{
		"account_name":     ev.AccountName,
		"account_type":     ev.AccountType,
		domain.AuthTypeKey: ev.AuthType,
		"action":           string(ev.Action),
		"occurred_at":      ev.OccurredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode account event: %w", err)
	}
	return msg, nil
}

// DecodeAccountEvent is the inverse of EncodeAccountEvent
func DecodeAccountEvent(msg *structpb.Struct) (events.AccountEvent, error) {
	fields := msg.GetFields()
	ev := events.AccountEvent{
		AccountName: fields["account_name"].GetStringValue(),
		AccountType: fields["account_type"].GetStringValue(),
		AuthType:    fields[domain.AuthTypeKey].GetStringValue(),
		Action:      events.AccountAction(fields["action"].GetStringValue()),
	}
	if raw := fields["occurred_at"].GetStringValue(); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ev, fmt.Errorf("failed to decode occurred_at: %w", err)
		}
		ev.OccurredAt = at
	}
	return ev, nil
}
