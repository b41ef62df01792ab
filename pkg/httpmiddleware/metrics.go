package httpmiddleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Measure returns a middleware recording a request counter and a duration
// histogram per route pattern, method, and status class. It complements
// the otelhttp spans from Instrument with low-cardinality aggregates
// suitable for dashboards.
func Measure(meter metric.Meter) Middleware {
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Completed HTTP requests"),
	)
	if err != nil {
		otel.Handle(err)
	}
	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			// Route patterns keep cardinality bounded; raw paths contain ids.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			attrs := metric.WithAttributes(
				attribute.String("http.route", route),
				attribute.String("http.method", r.Method),
				attribute.Int("http.status_code", rec.status),
			)
			if requests != nil {
				requests.Add(r.Context(), 1, attrs)
			}
			if duration != nil {
				duration.Record(r.Context(), float64(time.Since(start).Microseconds())/1000, attrs)
			}
		})
	}
}
