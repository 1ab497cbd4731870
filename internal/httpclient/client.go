package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTransport is the base transport used by the instrumented client.
var DefaultTransport = http.DefaultTransport

type contextKey string

const providerKey contextKey = "httpclient.provider"

// WithProvider tags outgoing requests with the collaborator they talk to
// ("recipe-page", "huggingface", "llama-server", "openai").
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey, provider)
}

// Provider returns the collaborator name set by WithProvider.
func Provider(ctx context.Context) string {
	p, _ := ctx.Value(providerKey).(string)
	return p
}

// providerTransport is a RoundTripper that adds provider attributes to the current span.
type providerTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *providerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	span := trace.SpanFromContext(req.Context())
	if provider := Provider(req.Context()); provider != "" {
		span.SetAttributes(attribute.String("provider", provider))
	}
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP status %d", resp.StatusCode))
	}
	return resp, nil
}

func newOtelTransport(base http.RoundTripper, userAgent string) http.RoundTripper {
	return otelhttp.NewTransport(&providerTransport{base: base, userAgent: userAgent},
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			if provider := Provider(r.Context()); provider != "" {
				return fmt.Sprintf("%s: %s %s", provider, r.Method, r.URL.Path)
			}
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
	)
}

// InstrumentedClient is an http.Client with OpenTelemetry instrumentation.
// It has no timeout: model inference over HTTP may legitimately run for minutes,
// so callers bound requests through their context.
var InstrumentedClient = &http.Client{
	Transport: newOtelTransport(DefaultTransport, ""),
}

// NewInstrumentedClient returns a new http.Client with OpenTelemetry instrumentation and custom timeout.
func NewInstrumentedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: newOtelTransport(DefaultTransport, ""),
		Timeout:   timeout,
	}
}

// NewBrowserClient is NewInstrumentedClient with a default User-Agent header,
// used for fetching recipe pages that reject Go's default agent.
func NewBrowserClient(timeout time.Duration, userAgent string) *http.Client {
	return &http.Client{
		Transport: newOtelTransport(DefaultTransport, userAgent),
		Timeout:   timeout,
	}
}

// WrapClient wraps an existing http.Client's transport with OpenTelemetry instrumentation.
func WrapClient(client *http.Client) *http.Client {
	if client.Transport == nil {
		client.Transport = DefaultTransport
	}
	client.Transport = newOtelTransport(client.Transport, "")
	return client
}
