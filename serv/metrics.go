package serv

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// httpMetrics holds the OpenTelemetry instruments of the HTTP surface
type httpMetrics struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPMetrics() *httpMetrics {
	meter := otel.Meter("docfind/serv")
	m := &httpMetrics{}

	m.requests, _ = meter.Int64Counter("docfind.http.requests",
		metric.WithDescription("Number of HTTP requests served"))
	m.errors, _ = meter.Int64Counter("docfind.http.errors",
		metric.WithDescription("Number of HTTP requests answered with a 5xx status"))
	m.duration, _ = meter.Float64Histogram("docfind.http.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"))

	return m
}

// middleware records one request, labelled by route pattern and status
func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		attrs := metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", r.Method),
			attribute.String("http.status_code", strconv.Itoa(status)))

		ctx := r.Context()
		if m.requests != nil {
			m.requests.Add(ctx, 1, attrs)
		}
		if m.errors != nil && status >= 500 {
			m.errors.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
		}
	}
	return http.HandlerFunc(fn)
}
