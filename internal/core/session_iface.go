package core

// SessionID identifies a visitor (client-token cookie), not a vendor session.
type SessionID string
