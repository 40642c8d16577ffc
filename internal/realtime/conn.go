package realtime

// Conn is one live client connection as seen by the core.
type Conn interface {
	ID() string
	UserID() int64
	// Send queues ev without blocking. It reports false when the
	// connection is gone or its buffer is full.
	Send(ev Event) bool
	Alive() bool
	Close()
}

// Locator resolves a user to their current connection.
type Locator interface {
	Lookup(userID int64) (Conn, bool)
}
