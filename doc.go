// Package authz provides request authorization for multi-tenant SaaS
// handlers: bearer token verification, principal loading, and composable
// guards over role, subscription plan, product entitlement and monthly usage.
//
// Pipeline:
//   - TokenService verifies HMAC signed JWTs (expiry, issuer, audience and
//     rotated keys addressed by kid) and yields the subject id.
//   - PrincipalLoader resolves the subject into a Principal. PrincipalStore
//     reads users, subscriptions, entitlements and current period usage
//     counters through bun. Wrap it with NewBreakerLoader to fail fast while
//     the database is down.
//   - Guards are plain functions combined with All. Evaluation stops at the
//     first failure, which becomes the response.
//
// Usage:
//   - RequireUsageLimit and RequireUsageQuota are advisory checks against the
//     counters loaded with the principal.
//   - ReserveUsage and ReserveUsageQuota increment the counter atomically
//     through a UsageRecorder (PrincipalStore or RedisUsageRecorder) and deny
//     once the limit is reached. Put them last in a chain.
//
// Transports:
//   - Authorizer.Wrap, WrapOptional, Protect and Optional adapt the pipeline
//     to go-router. middleware/fiberauth and middleware/grpcauth cover Fiber
//     and gRPC servers.
//   - Failures are go-errors values carrying the HTTP status, a text code and
//     the denial reason. Failure renders them as the JSON envelope.
//
// Every run emits a Decision to registered listeners. The metrics package
// turns decisions into prometheus series.
package authz
