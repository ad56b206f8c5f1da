package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSpanLifecycle(t *testing.T) {
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	span, ctx := StartClientSpan(context.Background(), "GET", "/projects/{id}")
	assert.NotNil(t, opentracing.SpanFromContext(ctx))

	headers := http.Header{}
	InjectHeaders(span, opentracing.HTTPHeadersCarrier(headers))
	assert.NotEmpty(t, headers)

	FinishClientSpan(span, 404, errors.New("Project not found"))

	finished := tracer.FinishedSpans()
	require.Len(t, finished, 1)
	assert.Equal(t, "api GET /projects/{id}", finished[0].OperationName)
	assert.Equal(t, true, finished[0].Tag("error"))
	assert.Equal(t, uint16(404), finished[0].Tag("http.status_code"))
}

func TestFinishNilSpan(t *testing.T) {
	FinishClientSpan(nil, 200, nil)
	InjectHeaders(nil, opentracing.HTTPHeadersCarrier(http.Header{}))
}
