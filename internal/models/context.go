package models

import (
	"context"
)

type requestContextKey struct{}

// RequestContext carries per-request data through context so services can tag
// their log lines without widening every signature.
type RequestContext struct {
	RequestId string
	ClientIP  string
	Route     string
}

// WithRequestContext attaches request data to a context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext retrieves request data from context, or nil if absent.
func GetRequestContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

// RequestId returns the request id stored in ctx, or "" when absent.
func RequestId(ctx context.Context) string {
	if rc := GetRequestContext(ctx); rc != nil {
		return rc.RequestId
	}
	return ""
}
