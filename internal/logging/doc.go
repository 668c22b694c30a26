// Package logging provides structured logging for the arrayacq server.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout the server: connection lifecycle events, protocol
// frames and device calls.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (frame hex dumps, every device call)
//   - Info: Normal operations (connections, lifecycle state changes)
//   - Warn: Non-fatal issues (rejected requests, connection drops)
//   - Error: Session-ending faults (framing errors, listen failures)
//
// The level can be changed while running with SetLevel; the control panel
// uses this for its log-level selector.
//
// # Structured Logging
//
//	logging.Info("Acceptor listening",
//	    zap.String("addr", ln.Addr().String()),
//	)
//
// Connection and frame logging:
//
//	logging.LogConnection(remoteAddr, "connection_accepted")
//	logging.LogMessage(remoteAddr, "received", typ.String(), payload)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// With an empty level the ARRAYACQ_LOG_LEVEL environment variable is used; if
// that is empty too, logging is silent.
//
// # Tail
//
// A Tail keeps the latest lines in memory. Interactive front ends pass one in
// Options together with Quiet so log output does not corrupt the terminal.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
