// Package middleware provides HTTP middleware for authentication, request
// tracing and rate limiting.
//
// AuthMiddleware resolves "Bearer <token>" or "Token <token>" credentials to
// an auth.AuthContext. In optional mode requests without credentials pass
// through anonymously; a presented but invalid token is always rejected.
//
//	router.Use(middleware.NewAuthMiddleware(tokenStore, true).Handler)
//
// RequestID and Logging attach a request id and a request scoped logrus entry.
//
// RateLimitMiddleware throttles authenticated users with either the
// in-process token bucket (RateLimiter) or the Redis fixed window
// (DistributedRateLimiter) when several instances share one limit.
// Throttled requests receive 429 with Retry-After.
package middleware
