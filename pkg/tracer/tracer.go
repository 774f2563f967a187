// Package tracer is the process-wide entry point for spans. Until InitTracer
// runs, spans come from the global OpenTelemetry provider, which is a no-op
// unless something installed one.
package tracer

import (
	"context"
	"sync"

	gotel "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/astro-web3/runtime-authz/pkg/otel"
)

const instrumentationName = "github.com/astro-web3/runtime-authz"

var (
	defaultTracer trace.Tracer
	tracerMu      sync.RWMutex
	initOnce      sync.Once
	errInit       error
)

func InitTracer(serviceName string, cfg otel.Config) error {
	initOnce.Do(func() {
		cfg.ServiceName = serviceName
		t, err := otel.InitTracer(cfg)
		if err != nil {
			errInit = err
			return
		}

		tracerMu.Lock()
		defaultTracer = t
		tracerMu.Unlock()
	})

	return errInit
}

func Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tracerMu.RLock()
	t := defaultTracer
	tracerMu.RUnlock()

	if t == nil {
		t = gotel.Tracer(instrumentationName)
	}
	return t.Start(ctx, spanName, opts...)
}
