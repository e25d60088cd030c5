package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/salesops/internal/core"
)

// WithRequestMetadata copies the operator's IP and User-Agent into ctx for
// the import audit trail. RemoteAddr has already been resolved by
// TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr
	if addr, ok := remoteIP(r); ok {
		ip = addr
	}
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
