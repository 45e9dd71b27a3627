package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewOptions(t *testing.T) {
	opts := NewOptions()
	assert.False(t, opts.Enabled)
	assert.Equal(t, "ai-router", opts.ServiceName)
	assert.Equal(t, ExporterOTLPGRPC, opts.ExporterType)
	assert.Equal(t, SamplerParentBased, opts.SamplerType)
	assert.Empty(t, opts.Validate())
}

func TestOptionsValidate(t *testing.T) {
	valid := func() *Options {
		o := NewOptions()
		o.Enabled = true
		return o
	}

	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Options) {}},
		{name: "missing service name", mutate: func(o *Options) { o.ServiceName = "" }, wantErr: true},
		{name: "missing endpoint", mutate: func(o *Options) { o.Endpoint = "" }, wantErr: true},
		{name: "stdout needs no endpoint", mutate: func(o *Options) { o.ExporterType = ExporterStdout; o.Endpoint = "" }},
		{name: "invalid exporter", mutate: func(o *Options) { o.ExporterType = "kafka" }, wantErr: true},
		{name: "invalid sampler", mutate: func(o *Options) { o.SamplerType = "sometimes" }, wantErr: true},
		{name: "ratio out of range", mutate: func(o *Options) { o.SamplerRatio = 1.5 }, wantErr: true},
		{name: "zero timeout", mutate: func(o *Options) { o.BatchTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(o)
			if tt.wantErr {
				assert.NotEmpty(t, o.Validate())
			} else {
				assert.Empty(t, o.Validate())
			}
		})
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(nil)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Noop(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	opts := NewOptions()
	opts.Enabled = true
	opts.ExporterType = ExporterNoop
	opts.BatchTimeout = 10 * time.Millisecond

	p, err := NewProvider(opts)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "test")
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, p.Shutdown(ctx))
}

func TestNewProvider_InvalidOptions(t *testing.T) {
	opts := NewOptions()
	opts.Enabled = true
	opts.ExporterType = "bogus"
	_, err := NewProvider(opts)
	assert.Error(t, err)
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := StartSpan(context.Background(), "route", String(AttrIntent, "greeting"))
	AddSpanAttributes(ctx, Float64(AttrConfidence, 0.9), Bool(AttrCacheHit, false))
	RecordError(ctx, errors.New("provider timeout"))
	RecordError(ctx, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "route", spans[0].Name())
	assert.Len(t, spans[0].Attributes(), 3)
	assert.Len(t, spans[0].Events(), 1)

	assert.Empty(t, TraceIDFromContext(context.Background()))
}
