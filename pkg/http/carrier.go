package http

import (
	"context"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// injectTracingHeaders propagates the caller's trace to outbound lookups so
// tenant directory calls show up under the request that triggered them.
func injectTracingHeaders(ctx context.Context, request *resty.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))
}
