// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/audit"
	"github.com/telekom/catfact-mailer/pkg/mail"
	"github.com/telekom/catfact-mailer/pkg/metrics"
	"github.com/telekom/catfact-mailer/pkg/store"
)

const tracerName = "github.com/telekom/catfact-mailer/pkg/dispatch"

// Source is the read side of the store used by a cycle.
type Source interface {
	RandomFact(ctx context.Context) (store.Fact, error)
	ListSubscribers(ctx context.Context) ([]store.Subscriber, error)
}

// Dispatcher sends the daily fact to every subscriber.
type Dispatcher struct {
	source    Source
	transport mail.Transport
	renderer  *mail.Renderer
	recorder  *audit.Recorder
	log       *zap.SugaredLogger
	tracer    trace.Tracer
	loc       *time.Location
	now       func() time.Time
}

// New builds a Dispatcher. recorder may be nil.
func New(source Source, transport mail.Transport, renderer *mail.Renderer, recorder *audit.Recorder, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		source:    source,
		transport: transport,
		renderer:  renderer,
		recorder:  recorder,
		log:       log.Named("dispatch"),
		tracer:    otel.Tracer(tracerName),
		loc:       time.Local,
		now:       time.Now,
	}
}

// WithLocation sets the zone the mail date is rendered in. It should match
// the schedule's location so a midnight cycle carries the day it started.
func (d *Dispatcher) WithLocation(loc *time.Location) *Dispatcher {
	if loc != nil {
		d.loc = loc
	}
	return d
}

// RunCycle performs one notification cycle. Data fetch failures abort the
// cycle with a *DataFetchError before anything is sent. Per-recipient send
// failures are collected in the report and the remaining recipients are still
// tried. The store gate is never held while mail is being sent.
func (d *Dispatcher) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{
		ID:          uuid.New(),
		TriggeredAt: d.now(),
	}
	log := d.log.With("cycle", report.ID.String())
	log.Infow("Starting dispatch cycle", "triggeredAt", report.TriggeredAt)

	ctx, span := d.tracer.Start(ctx, "dispatch.cycle",
		trace.WithAttributes(attribute.String("catfacts.cycle_id", report.ID.String())))
	defer span.End()

	fact, err := d.source.RandomFact(ctx)
	if err != nil {
		return nil, d.abort(log, span, report, StageFact, err)
	}
	report.FactID = fact.ID

	subscribers, err := d.source.ListSubscribers(ctx)
	if err != nil {
		return nil, d.abort(log, span, report, StageSubscribers, err)
	}

	if len(subscribers) == 0 {
		log.Infow("No subscribers, nothing to send", "factID", fact.ID)
	}

	for _, sub := range subscribers {
		report.Attempted++
		if err := d.sendOne(ctx, sub, fact, report.TriggeredAt.In(d.loc)); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, RecipientSendError{
				SubscriberID: sub.ID,
				Recipient:    sub.Email,
				Reason:       err.Error(),
				Err:          err,
			})
			span.AddEvent("send failed", trace.WithAttributes(attribute.Int64("catfacts.subscriber_id", sub.ID)))
			log.Warnw("Failed to send cat fact", "subscriberID", sub.ID, "recipient", sub.Email, "error", err)
			continue
		}
		report.Succeeded++
	}

	report.Duration = time.Since(report.TriggeredAt)
	metrics.DispatchCycles.WithLabelValues(report.Result()).Inc()
	metrics.DispatchLastCycleTimestamp.Set(float64(d.now().Unix()))
	metrics.DispatchCycleDuration.Observe(report.Duration.Seconds())
	d.recorder.DispatchCompleted(report.ID.String(), report.FactID, report.Attempted, report.Succeeded, report.Failed, report.Duration)

	span.SetAttributes(
		attribute.Int64("catfacts.fact_id", report.FactID),
		attribute.Int("catfacts.attempted", report.Attempted),
		attribute.Int("catfacts.succeeded", report.Succeeded),
		attribute.Int("catfacts.failed", report.Failed),
	)
	if report.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d sends failed", report.Failed, report.Attempted))
	}

	log.Infow("Dispatch cycle finished",
		"factID", report.FactID,
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration", report.Duration.String())
	return report, nil
}

func (d *Dispatcher) abort(log *zap.SugaredLogger, span trace.Span, report *CycleReport, stage string, cause error) error {
	err := &DataFetchError{Stage: stage, Err: cause}
	span.RecordError(err)
	span.SetStatus(codes.Error, "data fetch failed")
	metrics.DispatchCycles.WithLabelValues("data_fetch_error").Inc()
	d.recorder.DispatchFailed(report.ID.String(), stage, cause)
	if errors.Is(cause, store.ErrNoFacts) {
		log.Warnw("No cat facts stored, skipping dispatch")
	} else {
		log.Errorw("Dispatch aborted", "stage", stage, "error", cause)
	}
	return err
}

// sendOne renders and sends a single message. A panicking transport is
// turned into an error for that recipient.
func (d *Dispatcher) sendOne(ctx context.Context, sub store.Subscriber, fact store.Fact, day time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panicked: %v", r)
		}
	}()

	msg, err := d.renderer.Render(sub.Email, fact.Text, day)
	if err != nil {
		return err
	}
	return d.transport.Send(ctx, msg)
}
