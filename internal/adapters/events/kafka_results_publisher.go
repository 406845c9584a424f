package events

import (
	"context"
	"distance-matrix-service/internal/domain"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const ResultsPublishedType = "distance.results.published"

// ResultsEvent is the message body published for every result set.
type ResultsEvent struct {
	Type       string               `json:"type"`
	Generation uint64               `json:"generation"`
	OccurredAt time.Time            `json:"occurredAt"`
	Results    []domain.RouteResult `json:"results"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaResultsPublisher publishes each completed result set to a topic.
type KafkaResultsPublisher struct {
	writer messageWriter
	logger *zap.Logger
	now    func() time.Time
}

// NewKafkaResultsPublisher creates a publisher writing to topic on brokers.
func NewKafkaResultsPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaResultsPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafkago.RequireOne,
	}
	return newKafkaResultsPublisher(w, logger)
}

func newKafkaResultsPublisher(w messageWriter, logger *zap.Logger) *KafkaResultsPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaResultsPublisher{writer: w, logger: logger, now: time.Now}
}

// PublishResults writes one message keyed by generation.
func (p *KafkaResultsPublisher) PublishResults(ctx context.Context, generation uint64, results []domain.RouteResult) error {
	msg, err := p.message(generation, results)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish results generation=%d: %w", generation, err)
	}

	p.logger.Debug("results event published",
		zap.Uint64("generation", generation),
		zap.Int("count", len(results)),
	)
	return nil
}

func (p *KafkaResultsPublisher) message(generation uint64, results []domain.RouteResult) (kafkago.Message, error) {
	if results == nil {
		results = []domain.RouteResult{}
	}

	body, err := json.Marshal(ResultsEvent{
		Type:       ResultsPublishedType,
		Generation: generation,
		OccurredAt: p.now().UTC(),
		Results:    results,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("publish results: encode: %w", err)
	}

	return kafkago.Message{
		Key:   []byte(strconv.FormatUint(generation, 10)),
		Value: body,
	}, nil
}

// Close flushes pending writes and releases the connection.
func (p *KafkaResultsPublisher) Close() error {
	return p.writer.Close()
}
