package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const (
	HeaderContentType          = "Content-Type"
	HeaderValueApplicationJson = "application/json"
)

type RequestBuilder struct {
	endpoint string
	path     string
	method   string
	headers  map[string]string
	body     any
	ctx      context.Context
}

func NewHttpRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		headers: make(map[string]string),
	}
}

// WithEndpoint sets scheme, host and port, e.g. http://embedder:8080
func (h *RequestBuilder) WithEndpoint(endpoint string) *RequestBuilder {
	h.endpoint = endpoint
	return h
}

func (h *RequestBuilder) WithPath(path string) *RequestBuilder {
	h.path = path
	return h
}

func (h *RequestBuilder) WithMethod(method string) *RequestBuilder {
	h.method = method
	return h
}

func (h *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	h.headers[key] = value
	return h
}

func (h *RequestBuilder) WithBody(body any) *RequestBuilder {
	h.body = body
	return h
}

func (h *RequestBuilder) WithContext(ctx context.Context) *RequestBuilder {
	h.ctx = ctx
	return h
}

// BuildContentTypeJson validates the builder and builds a request with a JSON body.
func (h *RequestBuilder) BuildContentTypeJson() (*http.Request, error) {
	if len(h.endpoint) == 0 {
		return nil, errors.New("endpoint is required")
	}
	if len(h.method) == 0 {
		return nil, errors.New("method is required")
	}
	if h.ctx == nil {
		return nil, errors.New("context is required, pass context.Background() if not required")
	}
	// a nil body sends none, which is what GET requests want
	var body io.Reader = http.NoBody
	if h.body != nil {
		requestBody, err := json.Marshal(h.body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewBuffer(requestBody)
	}
	url := strings.TrimRight(h.endpoint, "/") + "/" + strings.TrimLeft(h.path, "/")
	req, err := http.NewRequestWithContext(h.ctx, h.method, url, body)
	if err != nil {
		return nil, err
	}
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set(HeaderContentType, HeaderValueApplicationJson)
	return req, nil
}
