package service

import (
	"context"
	"net/http"
)

// ForwardedHeaders are copied from the page's request onto backend requests,
// so the backend sees the same session as the browser.
var ForwardedHeaders = []string{"Cookie", "Authorization", "Accept-Language"}

type forwardKey struct{}

// WithForwarded stores the forwardable subset of h in ctx.
func WithForwarded(ctx context.Context, h http.Header) context.Context {
	out := http.Header{}
	for _, name := range ForwardedHeaders {
		if vals := h.Values(name); len(vals) > 0 {
			out[http.CanonicalHeaderKey(name)] = append([]string(nil), vals...)
		}
	}
	if len(out) == 0 {
		return ctx
	}
	return context.WithValue(ctx, forwardKey{}, out)
}

// Forwarded returns the headers stored by WithForwarded, if any.
func Forwarded(ctx context.Context) http.Header {
	h, _ := ctx.Value(forwardKey{}).(http.Header)
	return h
}
