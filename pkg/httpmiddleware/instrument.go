package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Instrument returns a middleware that wraps handlers in otelhttp server
// instrumentation bound to the application's telemetry providers. Spans
// are named "<service>.<METHOD> <path>".
func Instrument(service string, m *app.Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithPropagators(m.TextMapPropagator()),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				route := r.URL.Path
				if p := r.Pattern; p != "" {
					route = p
				}
				return operation + "." + r.Method + " " + route
			}),
		)
	}
}
