// Package device defines the acquisition capability driven by the protocol
// and provides a simulated implementation.
//
// Device is the only surface the session dispatcher calls into. Operations
// that fail for domain reasons (out-of-range gain, malformed element mask,
// out-of-order configuration phase) return *Error; its Message is sent to the
// client unchanged.
//
// Simulated replays a stored dataset. Each Signal call returns the scaled
// dataset plus a small amount of uniform noise and then pauses briefly to
// mimic acquisition time.
package device
