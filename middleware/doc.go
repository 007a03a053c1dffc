// Package middleware adapts engine validation to net/http. [Guard] reads
// the Authorization header, calls Engine.Validate, and stores the result in
// the request context for [AuthResultFromContext]. [RequireRole] adds role
// gating on top, and [ClientInfo] forwards the caller's IP and User-Agent
// so audit events record them.
//
// The package makes no authentication decisions of its own; everything is
// delegated to the engine.
package middleware
