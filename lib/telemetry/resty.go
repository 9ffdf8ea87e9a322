package telemetry

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

const redacted = "<redacted>"

// header values that carry credentials are never recorded on spans
var sensitiveHeaders = map[string]bool{
	"Authorization":             true,
	"Cookie":                    true,
	"Set-Cookie":                true,
	"X-Csrf-Token":              true,
	"Ocp-Apim-Subscription-Key": true,
}

// form fields whose name contains one of these are redacted
var sensitiveFields = []string{"password", "token"}

func InstrumentResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(onBeforeRequest(tracer))
	client.OnAfterResponse(onAfterResponse)
	client.OnError(onError)
}

func onBeforeRequest(tracer trace.Tracer) resty.RequestMiddleware {
	return func(cli *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), req.Method)
		req.SetContext(ctx)
		return nil
	}
}

func headerAttributes(out *[]attribute.KeyValue, prefix string, headers http.Header) {
	for header, values := range headers {
		canonical := http.CanonicalHeaderKey(header)
		for i, v := range values {
			if sensitiveHeaders[canonical] {
				v = redacted
			}
			key := fmt.Sprintf("%s/header: %s", prefix, canonical)
			if len(values) > 1 {
				key = fmt.Sprintf("%s (%d)", key, i)
			}
			*out = append(*out, attribute.String(key, v))
		}
	}
}

// RedactForm replaces credential values in an urlencoded form body.
func RedactForm(body string) string {
	values, err := url.ParseQuery(body)
	if err != nil {
		return redacted
	}
	for key := range values {
		lower := strings.ToLower(key)
		for _, field := range sensitiveFields {
			if strings.Contains(lower, field) {
				values[key] = []string{redacted}
				break
			}
		}
	}
	return values.Encode()
}

func requestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	reader, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	if reader == nil {
		return ""
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	mediatype, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediatype == "application/x-www-form-urlencoded" {
		return RedactForm(string(body))
	}
	return string(body)
}

func onAfterResponse(_ *resty.Client, res *resty.Response) error {
	span := trace.SpanFromContext(res.Request.Context())
	defer span.End()

	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)

	// setting request attributes here since res.Request.RawRequest is nil in onBeforeRequest
	span.SetName(fmt.Sprintf("http %s", res.Request.Method))
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)

	var attrs []attribute.KeyValue
	headerAttributes(&attrs, "request", res.Request.RawRequest.Header)
	headerAttributes(&attrs, "response", res.Header())
	span.SetAttributes(attrs...)

	span.SetAttributes(
		attribute.String("request/body", requestBody(res.Request.RawRequest)),
		attribute.String("response/body", res.String()),
	)
	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
	}

	return nil
}

func onError(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	span.SetName(fmt.Sprintf("http %s", req.Method))
	if req.RawRequest == nil {
		return
	}
	var attrs []attribute.KeyValue
	headerAttributes(&attrs, "request", req.RawRequest.Header)
	span.SetAttributes(attrs...)
	span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
}
