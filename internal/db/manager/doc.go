// Package manager forces server-side disconnects so that reconnect handling
// can be exercised against a live server.
//
// PostgreSQL sessions are ended with pg_terminate_backend; MySQL sessions
// are listed from information_schema.processlist and ended with KILL
// CONNECTION. In both cases the caller's own connection survives.
//
// # Example Usage
//
//	mgr, err := manager.New(db.DriverPgx)
//
//	// Disconnect every other client of "employees"
//	n, err := mgr.TerminateSessions(ctx, adminSession, "employees")
//
// # Thread Safety
//
// Manager holds no mutable state. The Querier passed in must not be shared
// between goroutines.
package manager
