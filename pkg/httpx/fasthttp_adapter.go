package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/valyala/fasthttp"
)

// FastHTTPAdapter adapts a HandlerFunc into a fasthttp.RequestHandler.
// The beacon listener runs on fasthttp by default; request state is
// copied out because fasthttp reuses its context objects.
func FastHTTPAdapter(h HandlerFunc) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		cctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hdr := make(http.Header)
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			key := string(k)
			hdr[key] = append(hdr[key], string(v))
		})

		var body io.ReadCloser
		if b := ctx.PostBody(); len(b) > 0 {
			body = io.NopCloser(bytes.NewReader(b))
		} else {
			body = io.NopCloser(bytes.NewReader(nil))
		}

		req := &Request{
			Ctx:        cctx,
			Method:     string(ctx.Method()),
			Path:       string(ctx.Path()),
			Header:     hdr,
			Body:       body,
			RemoteAddr: ctx.RemoteAddr().String(),
			rawQuery:   string(ctx.URI().QueryString()),
			Raw:        ctx,
		}

		rw := &fastHTTPResponseWriter{ctx: ctx, header: make(http.Header)}
		h(rw, req)
		_ = req.Body.Close()
	}
}

type fastHTTPResponseWriter struct {
	ctx    *fasthttp.RequestCtx
	header http.Header
	status int
}

func (f *fastHTTPResponseWriter) Header() http.Header { return f.header }

func (f *fastHTTPResponseWriter) WriteHeader(status int) {
	f.status = status
	for k, vals := range f.header {
		for _, v := range vals {
			f.ctx.Response.Header.Add(k, v)
		}
	}
	f.ctx.SetStatusCode(status)
}

func (f *fastHTTPResponseWriter) Write(b []byte) (int, error) {
	if f.status == 0 {
		f.WriteHeader(http.StatusOK)
	}
	return f.ctx.Write(b)
}
