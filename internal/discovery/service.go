package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service represents a discovered r2k event server on the network
type Service struct {
	// Instance is the advertised service instance name (e.g., "dock-door")
	Instance string `json:"instance"`

	// Hostname is the mDNS hostname (e.g., "gate-pi.local.")
	Hostname string `json:"hostname"`

	// IP is the IPv4 address, or IPv6 when no IPv4 address was announced
	IP string `json:"ip"`

	// Port is the HTTP port of the event server
	Port int `json:"port"`

	// Reader is the reader name the server streams events for
	Reader string `json:"reader,omitempty"`

	// Path is the WebSocket endpoint path
	Path string `json:"path"`

	// Metadata contains all mDNS TXT record data
	Metadata map[string]string `json:"metadata,omitempty"`

	// DiscoveredAt is when the service was discovered
	DiscoveredAt time.Time `json:"discovered_at"`
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	return fmt.Sprintf("r2k server %s (%s) at %s", s.Instance, s.Hostname, s.hostPort())
}

// EventsURL returns the WebSocket URL of the event stream.
func (s *Service) EventsURL() string {
	return "ws://" + s.hostPort() + s.Path
}

// StatusURL returns the URL of the JSON status endpoint.
func (s *Service) StatusURL() string {
	return "http://" + s.hostPort() + "/status"
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Service) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

func (s *Service) hostPort() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}
