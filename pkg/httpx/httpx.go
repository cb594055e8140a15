// Package httpx carries the engine-neutral handler shape used by the
// typing beacon, which can be served by net/http or fasthttp depending
// on config. Handlers written against Request/ResponseWriter run
// unchanged on either engine.
package httpx

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Request is the unified request representation handed to handlers.
// Handlers should use Ctx for cancellation and deadline propagation.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string

	rawQuery string
	query    url.Values

	// Raw holds the underlying transport request (*http.Request or
	// *fasthttp.RequestCtx) as an escape hatch.
	Raw interface{}
}

// Query returns the first value of a URL query parameter.
func (r *Request) Query(key string) string {
	if r.query == nil {
		vals, err := url.ParseQuery(r.rawQuery)
		if err != nil {
			vals = url.Values{}
		}
		r.query = vals
	}
	return r.query.Get(key)
}

// ResponseWriter is the subset of http.ResponseWriter semantics the
// adapters guarantee.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the handler signature shared by both engine adapters.
type HandlerFunc func(w ResponseWriter, r *Request)
