package http_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gotel "go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	httptransport "github.com/astro-web3/runtime-authz/internal/transport/http"
)

func installSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	gotel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { gotel.SetTracerProvider(noop.NewTracerProvider()) })
	return recorder
}

func endedSpan(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()

	for _, s := range recorder.Ended() {
		if s.Name() == name {
			return s
		}
	}
	require.Failf(t, "span not recorded", "%s", name)
	return nil
}

func TestMiddleware_HandlerRunsInsideAuthorizeSpan(t *testing.T) {
	recorder := installSpanRecorder(t)
	gin.SetMode(gin.TestMode)
	svc := newPipeline(nil, &fakePermissions{allowed: true})

	var handlerSpan trace.SpanContext
	router := gin.New()
	router.GET("/v1/jobs", httptransport.AuthorizationMiddleware(svc), func(c *gin.Context) {
		handlerSpan = trace.SpanFromContext(c.Request.Context()).SpanContext()
		c.Status(http.StatusOK)
	})

	w := doRequest(router, http.MethodGet, "/v1/jobs", bearer(clientToken(t, "T1")))
	require.Equal(t, http.StatusOK, w.Code)

	authorize := endedSpan(t, recorder, "transport.http.Authorize")
	pipeline := endedSpan(t, recorder, "app.authz.Authorize")

	assert.True(t, handlerSpan.IsValid())
	assert.Equal(t, authorize.SpanContext().SpanID(), handlerSpan.SpanID())
	assert.Equal(t, authorize.SpanContext().SpanID(), pipeline.Parent().SpanID())
}
