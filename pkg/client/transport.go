package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Transport fetches the document identified by an absolute URI. Failures
// should be reported as *errors.TransportError.
type Transport interface {
	Fetch(ctx context.Context, uri string) (*hal.Document, error)
}

type TransportFunc func(ctx context.Context, uri string) (*hal.Document, error)

func (fn TransportFunc) Fetch(ctx context.Context, uri string) (*hal.Document, error) {
	return fn(ctx, uri)
}

const (
	TraceAttributeResourceURI string = "resource-uri"
)

var tracer = otel.Tracer("halgraph-client")

const acceptHeader = hal.ContentType + ", " + hal.ErrorContentType + ";q=0.9, application/json;q=0.8"

type httpTransport struct {
	httpClient *http.Client
	headers    map[string][]string
	debug      bool
}

func NewHTTPTransport(httpClient *http.Client, headers map[string][]string, debug bool) Transport {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &httpTransport{
		httpClient: httpClient,
		headers:    headers,
		debug:      debug,
	}
}

func (t *httpTransport) Fetch(ctx context.Context, uri string) (doc *hal.Document, err error) {
	ctx, span := tracer.Start(ctx, "fetch-resource",
		trace.WithAttributes(attribute.String(TraceAttributeResourceURI, uri)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		err = errors.NewTransportError(0, uri, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal))
		return nil, err
	}

	req.Header.Set("Accept", acceptHeader)
	for header, values := range t.headers {
		for _, val := range values {
			req.Header.Add(header, val)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		err = errors.NewTransportError(0, uri, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRequest))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = errors.NewTransportError(resp.StatusCode, uri, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse))
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if t.debug {
			reqbytes, _ := httputil.DumpRequest(req, false)
			respbytes, _ := httputil.DumpResponse(resp, false)

			log := logging.GetFromContext(ctx)
			log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
		}

		err = errors.NewErrorFromErrorDocument(resp.StatusCode, uri, contentType, body)
		return nil, err
	}

	doc, err = hal.NewDocumentFromJSON(body)
	if err != nil {
		err = errors.NewTransportError(resp.StatusCode, uri, fmt.Errorf("failed to decode response with content-type %q: %s (%w)", contentType, err.Error(), errors.ErrBadResponse))
		return nil, err
	}

	return doc, nil
}
