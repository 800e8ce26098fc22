// Package generation wraps calls to generative model backends that return
// structured JSON.
//
// A Backend talks to one model. The Adapter adds everything around a single
// call: image filtering, a per-call deadline, one trace span, metrics, and
// the collapse of every failure into *GenerationError.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/splitledger/internal/metrics"
)

const tracerName = "github.com/mmynk/splitledger/internal/generation"

// Schema names and describes the JSON shape a call must return.
type Schema struct {
	Name       string
	Definition jsonschema.Definition
}

// Call is one structured generation request.
type Call struct {
	// System holds grounding instructions.
	System string
	// Prompt is the user instruction.
	Prompt string
	// Schema is the expected response shape.
	Schema Schema
	// Images are data URLs attached to the prompt.
	Images []string
}

// Backend performs one call against a single model.
type Backend interface {
	// Model names the underlying model, for logs and metrics.
	Model() string
	// Generate returns the raw JSON document produced by the model.
	Generate(ctx context.Context, call Call) (json.RawMessage, error)
}

// Adapter runs calls against backends.
type Adapter struct {
	tracer  trace.Tracer
	timeout time.Duration
	metrics *metrics.Collector
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTracerProvider sets the provider used for call spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Adapter) {
		a.tracer = tp.Tracer(tracerName)
	}
}

// WithTimeout bounds every call. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		a.timeout = d
	}
}

// WithMetrics records call counts and latency on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(a *Adapter) {
		a.metrics = c
	}
}

// NewAdapter creates an adapter using the global tracer provider by default.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate runs call on backend and returns the JSON document. Invalid
// images are dropped before the call. Any failure is a *GenerationError.
func (a *Adapter) Generate(ctx context.Context, backend Backend, call Call) (json.RawMessage, error) {
	model := backend.Model()

	images := FilterImages(call.Images)
	if dropped := len(call.Images) - len(images); dropped > 0 {
		slog.Debug("Dropped invalid image attachments", "model", model, "dropped", dropped)
	}
	call.Images = images

	ctx, span := a.tracer.Start(ctx, "generation.Generate",
		trace.WithAttributes(
			attribute.String("generation.model", model),
			attribute.String("generation.schema", call.Schema.Name),
			attribute.Int("generation.images", len(images)),
		),
	)
	defer span.End()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := safeGenerate(ctx, backend, call)
	if err == nil {
		err = checkDocument(out)
	}
	a.metrics.ObserveGeneration(model, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		slog.Warn("Generation call failed", "model", model, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, &GenerationError{Model: model, Err: err}
	}

	span.SetAttributes(attribute.Int("generation.response_bytes", len(out)))
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// safeGenerate turns a panicking backend into an error.
func safeGenerate(ctx context.Context, backend Backend, call Call) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return backend.Generate(ctx, call)
}

func checkDocument(out json.RawMessage) error {
	if len(bytes.TrimSpace(out)) == 0 {
		return ErrEmptyResponse
	}
	if !json.Valid(out) {
		return ErrMalformedResponse
	}
	return nil
}
