// Package admin serves the HTTP administration API of the acquisition
// server.
//
// Routes:
//
//	GET  /health   liveness probe
//	GET  /version  build and protocol version
//	GET  /status   controller state, session counters and device settings
//	POST /enable   {"port": 55500} starts listening
//	POST /disable  stops listening and drops the active session
//	GET  /metrics  Prometheus exposition
//	GET  /events   websocket stream of controller state changes
//
// Every response body is JSON except /metrics. Errors are reported as
// {"error": "..."} with a 4xx or 5xx status.
package admin
