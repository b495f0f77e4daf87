package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/config"
)

const (
	ModelUpdatesTopic = "model-updates"
	dlqSuffix         = "-dlq"
	defaultMaxRetries = 3
)

// ModelEvent announces that a new model artifact is available.
type ModelEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Version    string    `json:"version"`
	TrainedAt  time.Time `json:"trained_at"`
	Users      int       `json:"users"`
	Products   int       `json:"products"`
	Artifact   string    `json:"artifact_key"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
}

// MessageWriter is the part of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the part of kafka.Reader the subscriber uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Publisher struct {
	writer MessageWriter
	topic  string
	logger *logrus.Logger
}

func NewPublisher(cfg *config.KafkaConfig, logger *logrus.Logger) *Publisher {
	topic := topicName(cfg)
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewPublisherWithWriter(writer, topic, logger)
}

func NewPublisherWithWriter(writer MessageWriter, topic string, logger *logrus.Logger) *Publisher {
	return &Publisher{writer: writer, topic: topic, logger: logger}
}

func (p *Publisher) PublishModelUpdate(ctx context.Context, event ModelEvent) error {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	messageBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal model event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.Version),
		Value: messageBytes,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "model_version", Value: []byte(event.Version)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.logger.WithError(err).WithField("version", event.Version).Error("Failed to publish model event")
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"version":  event.Version,
		"topic":    p.topic,
	}).Info("Model event published")

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Subscriber consumes model events. Failed events are retried with exponential backoff
// and then written to the dead letter topic.
type Subscriber struct {
	reader     MessageReader
	dlq        MessageWriter
	topic      string
	logger     *logrus.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewSubscriber joins a consumer group unique to this process, so every server instance
// sees every event.
func NewSubscriber(cfg *config.KafkaConfig, logger *logrus.Logger) *Subscriber {
	topic := topicName(cfg)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        fmt.Sprintf("%s-%s", cfg.GroupID, uuid.NewString()[:8]),
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic + dlqSuffix,
		RequiredAcks: kafka.RequireOne,
	}
	return NewSubscriberWithReader(reader, dlq, topic, logger)
}

func NewSubscriberWithReader(reader MessageReader, dlq MessageWriter, topic string, logger *logrus.Logger) *Subscriber {
	return &Subscriber{
		reader:     reader,
		dlq:        dlq,
		topic:      topic,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		baseDelay:  time.Second,
	}
}

// SetRetryPolicy overrides the retry count and the first backoff delay.
func (s *Subscriber) SetRetryPolicy(maxRetries int, baseDelay time.Duration) {
	s.maxRetries = maxRetries
	s.baseDelay = baseDelay
}

// Run blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, handler func(context.Context, ModelEvent) error) error {
	for {
		message, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WithError(err).Error("Failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.baseDelay):
			}
			continue
		}

		var event ModelEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			s.logger.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal model event")
			if dlqErr := s.sendToDLQ(ctx, message.Value, event, err); dlqErr != nil {
				s.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
			continue
		}

		if err := s.processWithRetry(ctx, &event, handler); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WithError(err).WithField("version", event.Version).Error("Failed to process model event after retries")
			if dlqErr := s.sendToDLQ(ctx, message.Value, event, err); dlqErr != nil {
				s.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
		}
	}
}

func (s *Subscriber) processWithRetry(ctx context.Context, event *ModelEvent, handler func(context.Context, ModelEvent) error) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			delay := s.baseDelay * time.Duration(1<<uint(attempt-1))
			s.logger.WithFields(logrus.Fields{
				"version": event.Version,
				"attempt": attempt,
				"delay":   delay,
			}).Info("Retrying model event")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		event.RetryCount = attempt
		err := handler(ctx, *event)
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"version": event.Version,
				"attempt": attempt,
			}).Info("Model event processed")
			return nil
		}

		s.logger.WithError(err).WithFields(logrus.Fields{
			"version": event.Version,
			"attempt": attempt,
		}).Warn("Model event processing failed")

		if attempt == s.maxRetries {
			return fmt.Errorf("max retries exceeded: %w", err)
		}
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (s *Subscriber) sendToDLQ(ctx context.Context, raw []byte, event ModelEvent, originalError error) error {
	if s.dlq == nil {
		return nil
	}

	dlqBytes, err := json.Marshal(map[string]interface{}{
		"original_message": json.RawMessage(validJSON(raw)),
		"retry_count":      event.RetryCount,
		"error":            originalError.Error(),
		"dlq_timestamp":    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.Version),
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "original_topic", Value: []byte(s.topic)},
			{Key: "error", Value: []byte(originalError.Error())},
		},
	}

	if err := s.dlq.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"version": event.Version,
		"error":   originalError.Error(),
	}).Warn("Message sent to DLQ")

	return nil
}

func (s *Subscriber) Close() error {
	var errs []error

	if err := s.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}
	if s.dlq != nil {
		if err := s.dlq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
		}
	}

	return errors.Join(errs...)
}

func topicName(cfg *config.KafkaConfig) string {
	if cfg.Topics.ModelUpdates != "" {
		return cfg.Topics.ModelUpdates
	}
	return ModelUpdatesTopic
}

// validJSON keeps undecodable payloads embeddable in the DLQ envelope.
func validJSON(raw []byte) []byte {
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
