package authcore

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceTypeContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine stamps
// it on sessions, refresh-token rows, and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Recorded on
// sessions created by Login.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDeviceType attaches a coarse device classification ("desktop",
// "mobile", ...) to ctx for session records.
func WithDeviceType(ctx context.Context, deviceType string) context.Context {
	return context.WithValue(ctx, deviceTypeContextKey{}, deviceType)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func deviceTypeFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	deviceType, _ := ctx.Value(deviceTypeContextKey{}).(string)
	return deviceType
}
