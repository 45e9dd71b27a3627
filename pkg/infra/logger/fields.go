// Package logger 在 context 中携带日志字段，配合 kart-io/logger 全局实例输出请求级日志。
package logger

import (
	"context"
	"strconv"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"go.opentelemetry.io/otel/trace"
)

// 常用字段名。
const (
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
	FieldUserID    = "user_id"
)

type fieldsKey struct{}

// fields 按写入顺序保存的键值对，写时复制。
type fields struct {
	kv []any
}

func fromContext(ctx context.Context) *fields {
	if f, ok := ctx.Value(fieldsKey{}).(*fields); ok {
		return f
	}
	return &fields{}
}

func (f *fields) with(key string, value any) *fields {
	kv := make([]any, len(f.kv), len(f.kv)+2)
	copy(kv, f.kv)
	for i := 0; i < len(kv); i += 2 {
		if kv[i] == key {
			kv[i+1] = value
			return &fields{kv: kv}
		}
	}
	return &fields{kv: append(kv, key, value)}
}

// WithField 在 context 中设置一个字段，同名字段被覆盖。
func WithField(ctx context.Context, key string, value any) context.Context {
	return context.WithValue(ctx, fieldsKey{}, fromContext(ctx).with(key, value))
}

// WithFields 批量设置字段，奇数个参数时忽略最后一个，非 string 键被跳过。
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	f := fromContext(ctx)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			f = f.with(key, keysAndValues[i+1])
		}
	}
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithRequestID 设置 request_id，空值忽略。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return WithField(ctx, FieldRequestID, requestID)
}

// WithUserID 设置 user_id，非正数忽略。
func WithUserID(ctx context.Context, userID int64) context.Context {
	if userID <= 0 {
		return ctx
	}
	return WithField(ctx, FieldUserID, strconv.FormatInt(userID, 10))
}

// ExtractOpenTelemetryFields 把当前 span 的 trace_id、span_id 写入字段。
func ExtractOpenTelemetryFields(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ctx
	}
	return WithFields(ctx, FieldTraceID, sc.TraceID().String(), FieldSpanID, sc.SpanID().String())
}

// Fields 返回 context 中的全部字段，没有时返回 nil。
func Fields(ctx context.Context) []any {
	f := fromContext(ctx)
	if len(f.kv) == 0 {
		return nil
	}
	out := make([]any, len(f.kv))
	copy(out, f.kv)
	return out
}

// FromContext 返回附带 context 字段的全局日志实例。
func FromContext(ctx context.Context) core.Logger {
	base := logger.Global()
	if kv := Fields(ctx); len(kv) > 0 {
		return base.With(kv...)
	}
	return base
}
