package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName 本服务使用的 tracer 名称。
const TracerName = "github.com/kart-io/ai-router"

// 业务属性键
const (
	AttrUserID      = "user.id"
	AttrRequestID   = "request.id"
	AttrIntent      = "ai.intent"
	AttrConfidence  = "ai.confidence"
	AttrExplainCode = "ai.explain_code"
	AttrStatus      = "ai.route_status"
	AttrProvider    = "ai.provider"
	AttrModel       = "ai.model"
	AttrPurpose     = "ai.purpose"
	AttrCacheHit    = "rag.cache_hit"
	AttrChunks      = "rag.chunks"
	AttrDocumentID  = "rag.document_id"
)

// StartSpan 使用全局 TracerProvider 开启 span。
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// AddSpanAttributes 为当前 span 添加属性，无 span 时为空操作。
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// RecordError 记录错误并把 span 标记为失败。
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext 返回当前 trace ID，没有有效 span 时返回空串。
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

func String(key, value string) attribute.KeyValue { return attribute.String(key, value) }

func Int(key string, value int) attribute.KeyValue { return attribute.Int(key, value) }

func Int64(key string, value int64) attribute.KeyValue { return attribute.Int64(key, value) }

func Float64(key string, value float64) attribute.KeyValue { return attribute.Float64(key, value) }

func Bool(key string, value bool) attribute.KeyValue { return attribute.Bool(key, value) }
