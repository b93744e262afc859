package redisstore

// Key layout shared with anything that inspects the store directly.
const (
	sessionPrefix = "session"
	requestPrefix = "request"

	// APIURLKey holds the public API base URL for frontend discovery.
	APIURLKey = "config:api_url"
)

// SessionKey is the hash holding a session's fields.
func SessionKey(sessionID string) string { return sessionPrefix + ":" + sessionID }

// RequestKey is the hash holding one captured request's fields.
func RequestKey(sessionID, requestID string) string {
	return requestPrefix + ":" + sessionID + ":" + requestID
}

// IndexKey is the sorted set of a session's request ids scored by capture
// time in milliseconds.
func IndexKey(sessionID string) string { return sessionPrefix + ":" + sessionID + ":requests" }

// Hash field names.
const (
	fieldSessionID     = "session_id"
	fieldCreatedAt     = "created_at"
	fieldExpiresAt     = "expires_at"
	fieldRequestID     = "request_id"
	fieldMethod        = "method"
	fieldPath          = "path"
	fieldQueryParams   = "query_params"
	fieldHeaders       = "headers"
	fieldBody          = "body"
	fieldIPAddress     = "ip_address"
	fieldUserAgent     = "user_agent"
	fieldTimestamp     = "timestamp"
	fieldContentLength = "content_length"
)
