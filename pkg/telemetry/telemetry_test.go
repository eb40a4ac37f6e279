// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/config"
)

func restoreProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInitDisabled(t *testing.T) {
	restoreProvider(t)

	ctx := context.Background()
	tp, shutdown, err := Init(ctx, Options{Enabled: false})
	if err != nil {
		t.Fatalf("Init(disabled) returned error: %v", err)
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown returned error: %v", err)
	}
	if _, ok := tp.(noop.TracerProvider); !ok {
		t.Errorf("expected noop.TracerProvider, got %T", tp)
	}
}

func TestInitNoneExporterSamplesSpans(t *testing.T) {
	restoreProvider(t)

	ctx := context.Background()
	_, shutdown, err := Init(ctx, Options{
		Enabled:  true,
		Exporter: "none",
		Logger:   zap.NewNop().Sugar(),
	})
	if err != nil {
		t.Fatalf("Init(none) returned error: %v", err)
	}
	defer func() { _ = shutdown(ctx) }()

	// A zero sampling rate falls back to sampling everything.
	_, span := otel.Tracer("test").Start(ctx, "dispatch.cycle")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Error("expected span to be sampled")
	}
}

func TestInitStdoutExporter(t *testing.T) {
	restoreProvider(t)

	ctx := context.Background()
	tp, shutdown, err := Init(ctx, Options{
		Enabled:      true,
		Exporter:     "stdout",
		SamplingRate: 0.5,
	})
	if err != nil {
		t.Fatalf("Init(stdout) returned error: %v", err)
	}
	defer func() { _ = shutdown(ctx) }()
	if tp == nil {
		t.Fatal("TracerProvider is nil")
	}
}

func TestInitInvalidExporter(t *testing.T) {
	_, _, err := Init(context.Background(), Options{Enabled: true, Exporter: "jaeger"})
	if err == nil {
		t.Fatal("expected error for invalid exporter, got nil")
	}
}

func TestInitOTLPExporter(t *testing.T) {
	// The OTLP/HTTP exporter connects lazily, so New succeeds without a collector.
	for _, endpoint := range []string{"", "localhost:4318", "http://localhost:4318/v1/traces"} {
		t.Run(endpoint, func(t *testing.T) {
			restoreProvider(t)
			ctx := context.Background()
			tp, shutdown, err := Init(ctx, Options{
				Enabled:  true,
				Exporter: "otlp",
				Endpoint: endpoint,
				Insecure: true,
			})
			if err != nil {
				t.Fatalf("Init(otlp, %q) returned error: %v", endpoint, err)
			}
			t.Cleanup(func() { _ = shutdown(ctx) })
			if tp == nil {
				t.Fatal("TracerProvider is nil")
			}
		})
	}
}

func TestShutdownTwice(t *testing.T) {
	restoreProvider(t)

	ctx := context.Background()
	_, shutdown, err := Init(ctx, Options{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("first shutdown returned error: %v", err)
	}
	_ = shutdown(ctx)
}

func TestHasScheme(t *testing.T) {
	tests := map[string]bool{
		"":                            false,
		"localhost:4318":              false,
		"otel-collector:4318":         false,
		"http://otel-collector:4318":  true,
		"https://collector.example/x": true,
	}
	for in, want := range tests {
		if got := hasScheme(in); got != want {
			t.Errorf("hasScheme(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Tracing{
		Enabled:      true,
		Exporter:     "stdout",
		Endpoint:     "collector:4318",
		SamplingRate: 0.1,
	}, "v1.0.0", nil)

	if !opts.Enabled || opts.Exporter != "stdout" || opts.Endpoint != "collector:4318" {
		t.Errorf("unexpected options: %+v", opts)
	}
	if opts.ServiceVersion != "v1.0.0" {
		t.Errorf("ServiceVersion = %q", opts.ServiceVersion)
	}
	if opts.ServiceName != "" {
		t.Errorf("ServiceName should stay empty until Init, got %q", opts.ServiceName)
	}
}
