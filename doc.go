// Package authcore is an embeddable authentication and session security
// engine: argon2id credential management, signed access/refresh tokens,
// Redis-coordinated session tracking with concurrency caps, a shared
// brute-force guard, and authenticated encryption for stored PII.
//
// The package is a library, not a service. The adopting application
// supplies the persistent repositories (users, refresh tokens, reset
// tokens, optionally security events), a Redis client for the shared
// counters and session index, and delivery of reset tokens. Construct an
// [Engine] through [New]:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserRepository(users).
//		WithRefreshTokenRepository(refresh).
//		WithResetTokenRepository(resets).
//		WithSessionRepository(sessions).
//		Build()
//
// All failures cross the public boundary as sentinel errors or
// [ValidationError]; internal store detail is wrapped behind
// [ErrBackendUnavailable] and never surfaced to callers.
package authcore
