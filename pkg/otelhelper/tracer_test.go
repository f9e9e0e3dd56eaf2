package otelhelper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	ctx, span := StartSpan(t.Context(), tracer, "approval.submit",
		attribute.String(WorkflowCodeKey, "agent_registration"),
		attribute.String(EntityTypeKey, "Agent"),
	)
	require.NotNil(t, ctx)

	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "approval.submit", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String(WorkflowCodeKey, "agent_registration"))
	assert.Contains(t, spans[0].Attributes, attribute.String(EntityTypeKey, "Agent"))
}

func TestSetError_MarksSpanFailed(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	_, span := StartSpan(t.Context(), tracer, "approval.process_decision")

	SetError(span, errors.New("request already finalized"),
		attribute.String(RequestIDKey, "req-1"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "request already finalized", spans[0].Status.Description)

	var eventNames []string
	for _, event := range spans[0].Events {
		eventNames = append(eventNames, event.Name)
	}

	assert.Contains(t, eventNames, "exception")
	assert.Contains(t, eventNames, "error_occurred")
}
