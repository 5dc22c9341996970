package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes operational alert events. Fulfillment failures after a
// captured payment go through here so ops tooling can pick them up.
type Producer interface {
	SendMessage(key string, message interface{}) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
}

func NewProducer(brokers, topic string) Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", brokers)
	if err != nil {
		log.Printf("Kafka connection failed: %v", err)
		log.Printf("Using mock producer instead")
		return &mockProducer{}
	}
	defer conn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		},
	}

	if err := conn.CreateTopics(topicConfigs...); err != nil {
		log.Printf("Could not create topic (might already exist): %v", err)
	}

	log.Printf("Connected to Kafka at %s, topic %s", brokers, topic)
	return &kafkaProducer{writer: writer}
}

func (p *kafkaProducer) SendMessage(key string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// mockProducer lets the service run without a broker in development.
type mockProducer struct{}

func (p *mockProducer) SendMessage(key string, message interface{}) error {
	data, _ := json.Marshal(message)
	log.Printf("MOCK kafka: key=%s message=%s", key, string(data))
	return nil
}

func (p *mockProducer) Close() error {
	return nil
}
