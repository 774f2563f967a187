package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	EndpointURL    string
	Enabled        bool
	// SampleRatio is clamped to [0, 1]; 0 disables sampling of new traces.
	SampleRatio        float64
	Insecure           bool
	ResourceAttributes map[string]string
}

func (c Config) enabled() bool {
	return c.Enabled && c.EndpointURL != ""
}

func (c Config) sampleRatio() float64 {
	switch {
	case c.SampleRatio < 0:
		return 0
	case c.SampleRatio > 1:
		return 1
	default:
		return c.SampleRatio
	}
}

func (c Config) toResourceAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(c.ResourceAttributes)+3)
	attrs = append(attrs, attribute.String("service.name", c.ServiceName))
	if c.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", c.ServiceVersion))
	}
	if c.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", c.Environment))
	}

	for k, v := range c.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return attrs
}
