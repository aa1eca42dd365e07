package tracing

import (
	"fmt"

	"github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var GlobalTracer = otel.Tracer("portfolio-backend")

// HoneycombSetup configures the OpenTelemetry SDK with the honeycomb distro.
// Service name and API key are read from OTEL_SERVICE_NAME and HONEYCOMB_API_KEY.
// When disabled, the global no-op tracer provider stays in place.
func HoneycombSetup(enabled bool) (func(), error) {
	if !enabled {
		log.Debugln("honeycomb tracing disabled, using no-op tracer")
		return func() {}, nil
	}

	// baggage entries (e.g. post id) get copied onto every child span
	bsp := honeycomb.NewBaggageSpanProcessor()

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithSpanProcessor(bsp),
	)
	if err != nil {
		return nil, fmt.Errorf("configure open telemetry: %w", err)
	}

	log.Infoln("honeycomb tracing set up")
	return otelShutdown, nil
}

// EndSpan records err on the span (if any) before ending it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
