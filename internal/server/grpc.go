package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"task-tracker/backend/internal/audit"
	healthhandler "task-tracker/backend/internal/health/handler"
	"task-tracker/backend/internal/logging"
	"task-tracker/backend/internal/server/interceptors"
)

// Health service methods; unary ones pass through the interceptor chain.
const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthListMethod  = "/grpc.health.v1.Health/List"
)

// Deps holds the dependencies for the gRPC server.
type Deps struct {
	// Auth validates token pairs for SessionService and the session interceptor. If nil,
	// SessionService RPCs return Unimplemented.
	Auth interceptors.Authenticator
	// Health publishes readiness through grpc.health.v1. If nil, the health service is not registered.
	Health *healthhandler.Server
	// Audit records one event per authenticated RPC. If nil, RPCs are not audited.
	Audit audit.AuditLogger
	// Logger writes one line per RPC. If nil, output is discarded.
	Logger logging.Logger
}

// PublicMethods returns the full method names that do not require a session.
func PublicMethods() map[string]bool {
	return map[string]bool{
		AuthenticateMethod: true,
		healthCheckMethod:  true,
		healthListMethod:   true,
	}
}

// NewGRPCServer builds a grpc.Server with tracing, logging, session and audit interceptors
// and registers every service from deps.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	public := PublicMethods()
	quiet := map[string]bool{healthCheckMethod: true, healthListMethod: true}

	chain := []grpc.UnaryServerInterceptor{
		interceptors.LoggingUnary(deps.Logger, quiet),
		interceptors.RequestInfoUnary(),
	}
	if deps.Auth != nil {
		chain = append(chain, interceptors.SessionUnary(deps.Auth, public))
	}
	chain = append(chain, interceptors.AuditUnary(deps.Audit, quiet))

	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers SessionService and, when configured, the health service.
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	RegisterSessionServiceServer(s, NewSessionServer(deps.Auth))
	if deps.Health != nil {
		deps.Health.Register(s)
	}
}
