package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"halfjourney/internal/observability"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
)

// Response is the result returned by the stream and object-created
// handlers. Neither trigger inspects it; it is logged by the runtime.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func okResponse(body string) Response {
	return Response{StatusCode: http.StatusOK, Body: body}
}

func errorResponse(body string) Response {
	return Response{StatusCode: http.StatusInternalServerError, Body: body}
}

type options struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	flushed prometheus.Gatherer
	timeout time.Duration
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMetricsLog logs a snapshot of g at the end of every invocation.
func WithMetricsLog(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.flushed = g
	}
}

// WithTimeout bounds the work done for a single record.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) flush(ctx context.Context) {
	if o.flushed != nil {
		observability.LogSnapshot(ctx, o.logger, o.flushed)
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"message":"Some error happened"}`
	}
	return string(b)
}
