package bbb

import "context"

type headersKey struct{}

// WithRequestHeaders tags outbound API calls made with ctx, e.g. to forward
// the originating client IP to the conferencing server.
func WithRequestHeaders(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return context.WithValue(ctx, headersKey{}, headers)
}

// RequestHeadersFromContext returns headers previously set with
// WithRequestHeaders, or nil.
func RequestHeadersFromContext(ctx context.Context) map[string]string {
	headers, _ := ctx.Value(headersKey{}).(map[string]string)
	return headers
}
