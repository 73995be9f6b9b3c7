// Package telemetry provides the cloudevents.io-shaped operational sink
// Scheduler.SetEmitter attaches to (internal/scheduler's EventEmitter
// interface). Grounded on
// _examples/GoCodeAlone-modular/observer_cloudevents.go's NewCloudEvent
// helper and its id-generation/source/type/time wiring.
package telemetry

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Sink is where built cloudevents.Event values are handed off — typically
// an HTTP cloudevents client, but tests and a local/offline mode can supply
// a logging or in-memory sink instead.
type Sink interface {
	Send(ctx context.Context, event cloudevents.Event) error
}

// CloudEventEmitter builds a spec-compliant cloudevents.Event for every
// scheduler lifecycle notification and hands it to a Sink.
type CloudEventEmitter struct {
	source string
	sink   Sink
}

// NewCloudEventEmitter returns an emitter stamping every event's source
// attribute with source (e.g. "easyrepostd/download").
func NewCloudEventEmitter(source string, sink Sink) *CloudEventEmitter {
	return &CloudEventEmitter{source: source, sink: sink}
}

// EmitEvent implements scheduler.EventEmitter.
func (e *CloudEventEmitter) EmitEvent(ctx context.Context, eventType string, data map[string]any) error {
	evt := cloudevents.NewEvent()
	evt.SetID(uuid.NewString())
	evt.SetSource(e.source)
	evt.SetType(eventType)
	evt.SetTime(time.Now())
	evt.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		if err := evt.SetData(cloudevents.ApplicationJSON, data); err != nil {
			return fmt.Errorf("telemetry: set event data: %w", err)
		}
	}
	return e.sink.Send(ctx, evt)
}

// NopSink discards every event; useful when no observability backend is
// configured but the scheduler still expects a non-nil emitter.
type NopSink struct{}

func (NopSink) Send(ctx context.Context, event cloudevents.Event) error { return nil }

// HTTPSink sends events to a cloudevents-over-HTTP receiver using the
// official client, matching how the rest of the corpus wires cloudevents
// transports rather than hand-rolling an HTTP POST.
type HTTPSink struct {
	client cloudevents.Client
}

// NewHTTPSink builds an HTTPSink posting to target.
func NewHTTPSink(target string) (*HTTPSink, error) {
	client, err := cloudevents.NewClientHTTP(cloudevents.WithTarget(target))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build cloudevents http client: %w", err)
	}
	return &HTTPSink{client: client}, nil
}

func (h *HTTPSink) Send(ctx context.Context, event cloudevents.Event) error {
	result := h.client.Send(ctx, event)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("telemetry: event undelivered: %w", result)
	}
	return nil
}
