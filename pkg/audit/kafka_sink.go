// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/metrics"
)

const producerName = "catfacts"

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	// Name labels the sink in metrics. Default: "kafka"
	Name    string
	Brokers []string
	Topic   string
	// BatchTimeout defaults to one second, WriteTimeout to ten.
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes audit events as JSON. Messages are keyed by subject so
// every event about one fact or subscriber lands on the same partition.
type KafkaSink struct {
	name   string
	writer messageWriter
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewKafkaSink creates a KafkaSink. Brokers are dialed lazily, so an
// unreachable cluster only shows up as write errors.
func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	switch {
	case len(cfg.Brokers) == 0:
		return nil, errors.New("at least one Kafka broker is required")
	case cfg.Topic == "":
		return nil, errors.New("kafka topic is required")
	}
	if cfg.Name == "" {
		cfg.Name = "kafka"
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	logger.Info("Kafka audit sink created",
		zap.String("name", cfg.Name),
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return newKafkaSinkWithWriter(cfg.Name, &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}, logger), nil
}

func newKafkaSinkWithWriter(name string, w messageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{
		name:   name,
		writer: w,
		logger: logger.Named("kafka-audit"),
	}
}

// errorPatterns map substrings of broker/client errors to a metrics label.
// The first match wins.
var errorPatterns = []struct {
	label    string
	contains []string
}{
	{"auth", []string{"SASL", "authentication"}},
	{"timeout", []string{"timeout", "timed out"}},
	{"network", []string{"connection refused", "no such host"}},
	{"broker", []string{"broker", "leader"}},
	{"topic", []string{"topic"}},
}

// classifyKafkaError returns the error_type label for err.
func classifyKafkaError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	msg := err.Error()
	for _, p := range errorPatterns {
		for _, s := range p.contains {
			if strings.Contains(msg, s) {
				return p.label
			}
		}
	}
	return "other"
}

func toMessage(event *Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	key := event.Subject
	if key == "" {
		key = event.ID
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID)},
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "severity", Value: []byte(event.Severity)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
			{Key: "producer", Value: []byte(producerName)},
		},
	}, nil
}

func (s *KafkaSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Write publishes one event. Errors are counted by type and returned.
func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	if s.isClosed() {
		metrics.AuditSinkErrors.WithLabelValues(s.name, "closed").Inc()
		return errors.New("kafka sink is closed")
	}

	msg, err := toMessage(event)
	if err != nil {
		metrics.AuditSinkErrors.WithLabelValues(s.name, "serialization").Inc()
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	err = s.writer.WriteMessages(ctx, msg)
	if err == nil {
		return nil
	}

	errorType := classifyKafkaError(err)
	metrics.AuditSinkErrors.WithLabelValues(s.name, errorType).Inc()
	log := s.logger.With(
		zap.String("error_type", errorType),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)
	if errorType == "network" || errorType == "dns" || errorType == "timeout" {
		log.Warn("Kafka unreachable, audit event dropped", zap.Error(err))
	} else {
		log.Error("Failed to publish audit event", zap.Error(err))
	}
	return fmt.Errorf("failed to write to Kafka (%s): %w", errorType, err)
}

// Close flushes pending batches. Calling it again is a no-op.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writer.Close(); err != nil {
		s.logger.Error("Failed to close Kafka writer", zap.Error(err))
		return err
	}
	s.logger.Info("Kafka audit sink closed", zap.String("name", s.name))
	return nil
}

func (s *KafkaSink) Name() string {
	return s.name
}
