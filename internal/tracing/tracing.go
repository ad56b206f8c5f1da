package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/config"
)

// InitTracer initializes the Jaeger tracer and installs it globally
func InitTracer(serviceName, jaegerEndpoint string) (opentracing.Tracer, io.Closer, error) {
	cfg := &config.Configuration{
		ServiceName: serviceName,
		Sampler: &config.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &config.ReporterConfig{
			LogSpans:          false,
			CollectorEndpoint: jaegerEndpoint,
		},
	}

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

// StartClientSpan starts a client-kind span for an outgoing backend call
func StartClientSpan(ctx context.Context, method, route string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "api "+method+" "+route)
	ext.SpanKindRPCClient.Set(span)
	ext.HTTPMethod.Set(span, method)
	ext.Component.Set(span, "scenestudio-api")
	return span, ctx
}

// InjectHeaders propagates the span context into outgoing headers
func InjectHeaders(span opentracing.Span, carrier opentracing.HTTPHeadersCarrier) {
	if span == nil {
		return
	}
	_ = span.Tracer().Inject(span.Context(), opentracing.HTTPHeaders, carrier)
}

// FinishClientSpan records the response status and error, then finishes the span
func FinishClientSpan(span opentracing.Span, statusCode int, err error) {
	if span == nil {
		return
	}
	if statusCode > 0 {
		ext.HTTPStatusCode.Set(span, uint16(statusCode))
	}
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("error", err.Error())
	}
	span.Finish()
}
