package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Server represents an arrayacq server found on the network
type Server struct {
	// Instance is the advertised service instance name (e.g., "arrayacq-lab1")
	Instance string

	// Hostname is the mDNS hostname (e.g., "lab1.local.")
	Hostname string

	// IP is the server address, IPv4 when available
	IP string

	// Port is the protocol port (typically 55500)
	Port int

	// Metadata contains the mDNS TXT record data
	// Common fields: "protocol=1006", "version=1.0.0"
	Metadata map[string]string

	// DiscoveredAt is when the server was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the server
func (s *Server) String() string {
	return fmt.Sprintf("arrayacq server %s (%s) at %s", s.Instance, s.Hostname, s.Addr())
}

// Addr returns the host:port to dial
func (s *Server) Addr() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
