package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yoshapihoff/bricks/authenticator/internal/config"
	"github.com/yoshapihoff/bricks/authenticator/internal/kafka"
	"github.com/yoshapihoff/bricks/authenticator/internal/kafka/producers"
	"google.golang.org/protobuf/types/known/structpb"
)

// linkwatch tails the account events topic and logs every linked account
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Kafka.KafkaUrl == "" {
		log.Fatalf("KAFKA_URL is required")
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka.KafkaUrl, cfg.Kafka.SchemaRegistryUrl, cfg.Kafka.LinkwatchGroupID)
	if err != nil {
		log.Fatalf("Failed to initialize Kafka consumer: %v", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Watching %s", cfg.Kafka.AccountEventsTopic)
	messageType := (&structpb.Struct{}).ProtoReflect().Type()
	if err := consumer.Run(ctx, messageType, cfg.Kafka.AccountEventsTopic, logAccountEvent); err != nil {
		log.Fatalf("Consumer stopped: %v", err)
	}

	log.Println("Linkwatch stopped")
}

func logAccountEvent(message interface{}, offset int64) {
	msg, ok := message.(*structpb.Struct)
	if !ok {
		log.Printf("offset %d: unexpected message %T", offset, message)
		return
	}

	ev, err := producers.DecodeAccountEvent(msg)
	if err != nil {
		log.Printf("offset %d: %v", offset, err)
		return
	}

	log.Printf("offset %d: account %s %s (%s) at %s",
		offset, ev.AccountName, ev.Action, ev.AuthType, ev.OccurredAt.Format("2006-01-02 15:04:05"))
}
