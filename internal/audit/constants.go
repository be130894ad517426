package audit

// Capture limits for the middleware.
const (
	// MaxBodyCapture is the maximum size of request/response bodies to
	// capture (1MB). Prevents memory exhaustion from large payloads.
	MaxBodyCapture = 1024 * 1024

	// maxDecompressedSize bounds decompressed response bodies (2MB),
	// protecting against compression bombs.
	maxDecompressedSize = 2 * 1024 * 1024
)

// Headers consumed or produced by the capture middleware.
const (
	// CorrelationHeader carries a caller-supplied trace id. When present its
	// value becomes the entry's correlation id, else the entry id is used.
	CorrelationHeader = "X-Correlation-ID"

	// RequestIDHeader is echoed back to clients for correlation.
	RequestIDHeader = "X-Request-ID"
)

// Context keys for data shared between the middleware and handlers.
type contextKey string

const (
	// entryIDKey holds the entry id minted at capture start, so downstream
	// handlers may reference it.
	entryIDKey contextKey = "audit_entry_id"

	// userKey holds the authenticated principal id, set by the auth layer.
	userKey contextKey = "audit_user"

	// sessionKey holds the session identifier, set by the auth layer.
	sessionKey contextKey = "audit_session"
)
