package source

import (
	"context"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
)

// KafkaSource consumes transcript lines from a Kafka topic, one line per
// message value. Multi-line values are split so the watchdog always sees
// line-oriented input.
type KafkaSource struct {
	brokers       string
	topic         string
	consumerGroup string
	lines         chan string
}

// NewKafkaSource creates a consumer for the given topic.
func NewKafkaSource(brokers, topic, consumerGroup string, buffer int) *KafkaSource {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &KafkaSource{
		brokers:       brokers,
		topic:         topic,
		consumerGroup: consumerGroup,
		lines:         make(chan string, buffer),
	}
}

// Start begins consuming in a goroutine.
func (s *KafkaSource) Start(ctx context.Context) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(s.brokers, ","),
		Topic:    s.topic,
		GroupID:  s.consumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	go func() {
		defer close(s.lines)
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("KafkaSource: read error", "topic", s.topic, "error", err)
				continue
			}
			for _, line := range strings.Split(string(msg.Value), "\n") {
				if line == "" {
					continue
				}
				select {
				case s.lines <- line:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

// Lines returns the line channel.
func (s *KafkaSource) Lines() <-chan string { return s.lines }

// Ping checks broker reachability for the doctor command.
func Ping(ctx context.Context, brokers string) error {
	first := strings.Split(brokers, ",")[0]
	conn, err := kafka.DialContext(ctx, "tcp", first)
	if err != nil {
		return err
	}
	return conn.Close()
}
