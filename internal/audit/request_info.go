package audit

import "context"

// RequestInfo describes where a request came from. Transports attach it so the service layer
// can audit without knowing about HTTP or gRPC.
type RequestInfo struct {
	Source   string // "http" or "grpc"
	ClientIP string
}

type requestInfoKey struct{}

// WithRequestInfo returns ctx carrying info.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the RequestInfo on ctx. Missing fields default to "service" and "unknown".
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	if info.Source == "" {
		info.Source = "service"
	}
	if info.ClientIP == "" {
		info.ClientIP = "unknown"
	}
	return info
}
