package domain

// Session is a time-bounded capture context. It is written once and lives
// only as long as its store TTL.
type Session struct {
	ID        string `json:"session_id"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}
