// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/config"
)

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

// Recorder queues audit events and writes them to a sink from a single
// background worker, so callers on the request path never wait on Kafka.
//
// A nil *Recorder is valid and drops every event.
type Recorder struct {
	sink         Sink
	queue        chan *Event
	writeTimeout time.Duration
	logger       *zap.Logger

	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool

	dropped atomic.Int64
}

// NewRecorder starts the worker. queueSize <= 0 selects the default.
func NewRecorder(sink Sink, queueSize int, logger *zap.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r := &Recorder{
		sink:         sink,
		queue:        make(chan *Event, queueSize),
		writeTimeout: defaultWriteTimeout,
		logger:       logger.Named("audit-recorder"),
	}
	r.wg.Add(1)
	go r.process()
	return r
}

// NewFromConfig always logs events and additionally ships them to Kafka when
// brokers are configured.
func NewFromConfig(cfg config.Audit, logger *zap.Logger) (*Recorder, error) {
	sinks := []Sink{NewLogSink(logger)}
	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.Topic
		if topic == "" {
			topic = config.DefaultAuditTopic
		}
		kafkaSink, err := NewKafkaSink(KafkaSinkConfig{Brokers: cfg.Kafka.Brokers, Topic: topic}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka audit sink: %w", err)
		}
		sinks = append(sinks, kafkaSink)
	}
	return NewRecorder(NewMultiSink(sinks...), 0, logger), nil
}

// Emit queues an event. It never blocks; when the queue is full the event is
// dropped and counted.
func (r *Recorder) Emit(event *Event) {
	if r == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityForEventType(event.Type)
	}

	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
}

func (r *Recorder) process() {
	defer r.wg.Done()
	for event := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		if err := r.sink.Write(ctx, event); err != nil {
			r.logger.Error("failed to write audit event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
		cancel()
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close drains the queue and closes the sink.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.closeMu.Unlock()

	r.wg.Wait()
	return r.sink.Close()
}

// FactCreated records a new fact.
func (r *Recorder) FactCreated(factID int64, sourceIP string) {
	r.Emit(&Event{
		Type:     EventFactCreated,
		Subject:  fmt.Sprintf("fact/%d", factID),
		SourceIP: sourceIP,
	})
}

// SubscriberRegistered records a new subscriber. Only the mail domain is kept.
func (r *Recorder) SubscriberRegistered(subscriberID int64, email, sourceIP string) {
	r.Emit(&Event{
		Type:     EventSubscriberRegistered,
		Subject:  fmt.Sprintf("subscriber/%d", subscriberID),
		SourceIP: sourceIP,
		Details:  map[string]any{"domain": emailDomain(email)},
	})
}

// DispatchCompleted records a cycle that reached the send loop.
func (r *Recorder) DispatchCompleted(cycleID string, factID int64, attempted, succeeded, failed int, duration time.Duration) {
	severity := SeverityInfo
	if failed > 0 {
		severity = SeverityWarning
	}
	r.Emit(&Event{
		Type:     EventDispatchCompleted,
		Severity: severity,
		Subject:  "cycle/" + cycleID,
		Details: map[string]any{
			"factID":     factID,
			"attempted":  attempted,
			"succeeded":  succeeded,
			"failed":     failed,
			"durationMs": duration.Milliseconds(),
		},
	})
}

// DispatchFailed records a cycle that aborted before sending anything.
func (r *Recorder) DispatchFailed(cycleID string, stage string, cause error) {
	r.Emit(&Event{
		Type:    EventDispatchFailed,
		Subject: "cycle/" + cycleID,
		Details: map[string]any{
			"stage": stage,
			"error": cause.Error(),
		},
	})
}

func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return ""
}
