package grpcauth

import (
	"context"
	"strings"

	"github.com/goliatone/go-authz"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MetadataKey is the incoming metadata key carrying the credential
const MetadataKey = "authorization"

// Option configures the interceptors
type Option func(*interceptor)

type interceptor struct {
	authorizer *authz.Authorizer
	policies   map[string]authz.Guard
	public     map[string]bool
	optional   map[string]bool
	guards     []authz.Guard
}

// WithMethodGuards sets the guards for a full method name, for example
// "/billing.v1.Billing/Charge". They replace the default guards.
func WithMethodGuards(fullMethod string, guards ...authz.Guard) Option {
	return func(i *interceptor) {
		i.policies[fullMethod] = authz.All(guards...)
	}
}

// WithDefaultGuards applies guards to every method without its own policy
func WithDefaultGuards(guards ...authz.Guard) Option {
	return func(i *interceptor) {
		i.guards = append(i.guards, guards...)
	}
}

// WithPublicMethods skips authorization for the given methods
func WithPublicMethods(fullMethods ...string) Option {
	return func(i *interceptor) {
		for _, m := range fullMethods {
			i.public[m] = true
		}
	}
}

// WithOptionalMethods attaches the principal when present and never denies
func WithOptionalMethods(fullMethods ...string) Option {
	return func(i *interceptor) {
		for _, m := range fullMethods {
			i.optional[m] = true
		}
	}
}

func newInterceptor(a *authz.Authorizer, opts ...Option) *interceptor {
	if a == nil {
		panic("AUTHZ: grpc interceptor configuration: Authorizer is required.")
	}

	i := &interceptor{
		authorizer: a,
		policies:   map[string]authz.Guard{},
		public:     map[string]bool{},
		optional:   map[string]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

func (i *interceptor) authorize(ctx context.Context, fullMethod string) (context.Context, error) {
	if i.public[fullMethod] {
		return ctx, nil
	}

	header := credentialFromMetadata(ctx)

	if i.optional[fullMethod] {
		if p := i.authorizer.AuthenticateOptional(ctx, header); p != nil {
			return authz.WithPrincipal(ctx, p), nil
		}
		return ctx, nil
	}

	policy, ok := i.policies[fullMethod]
	if !ok {
		policy = authz.All(i.guards...)
	}

	p, err := i.authorizer.Authorize(ctx, header, policy)
	if err != nil {
		return ctx, ToStatus(err)
	}
	return authz.WithPrincipal(ctx, p), nil
}

// UnaryServerInterceptor authorizes unary calls. The principal is available
// to handlers through authz.PrincipalFromContext.
func UnaryServerInterceptor(a *authz.Authorizer, opts ...Option) grpc.UnaryServerInterceptor {
	i := newInterceptor(a, opts...)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := i.authorize(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor authorizes a stream once when it is opened
func StreamServerInterceptor(a *authz.Authorizer, opts ...Option) grpc.StreamServerInterceptor {
	i := newInterceptor(a, opts...)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := i.authorize(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

func credentialFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(MetadataKey)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// Code maps a denial reason to its gRPC status code
func Code(reason authz.Reason) codes.Code {
	switch reason {
	case authz.ReasonMissingCredential, authz.ReasonInvalidCredential, authz.ReasonPrincipalNotFound:
		return codes.Unauthenticated
	case authz.ReasonRoleDenied, authz.ReasonEntitlementRequired:
		return codes.PermissionDenied
	case authz.ReasonSubscriptionRequired, authz.ReasonPlanUpgradeRequired:
		return codes.FailedPrecondition
	case authz.ReasonUsageLimitExceeded:
		return codes.ResourceExhausted
	case authz.ReasonUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// ToStatus converts an authorization failure into a gRPC status error. The
// message is the envelope code, internal details are not exposed.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	_, body := authz.Failure(err)
	return status.Error(Code(authz.ReasonOf(err)), body.Error.Code+": "+body.Error.Message)
}
