package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/r2k/internal/logging"
)

const (
	// ServiceType is the mDNS service type for r2k event servers
	ServiceType = "_r2k._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for service discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPath is the event stream path assumed when none is advertised
	DefaultPath = "/events"
)

// TXT is the metadata published with a service.
type TXT struct {
	Reader   string
	Path     string
	Firmware string
	Version  string
}

// Records renders the metadata as TXT strings, skipping empty values.
func (t TXT) Records() []string {
	path := t.Path
	if path == "" {
		path = DefaultPath
	}
	records := []string{"txtvers=1", "path=" + path}
	for _, kv := range [][2]string{
		{"reader", t.Reader},
		{"firmware", t.Firmware},
		{"version", t.Version},
	} {
		if kv[1] != "" {
			records = append(records, kv[0]+"="+kv[1])
		}
	}
	return records
}

// Advertiser is a registered service. Shutdown withdraws it.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers an event server on all multicast interfaces.
func Advertise(instance string, port int, txt TXT) (*Advertiser, error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt.Records(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("Advertising event server",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertiser{server: server}, nil
}

// Shutdown sends goodbye packets and stops responding.
func (a *Advertiser) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// Scanner handles mDNS service discovery
type Scanner struct {
	// Timeout is the maximum time to wait for service discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan collects every service seen before the timeout or ctx ends.
func (s *Scanner) Scan(ctx context.Context) ([]*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		services []*Service
		seen     = make(map[string]bool)
	)
	err := s.browse(ctx, func(svc *Service) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[svc.Instance] {
			seen[svc.Instance] = true
			services = append(services, svc)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Service(nil), services...), nil
}

// WaitFor returns the first service whose instance or reader name matches
// name.
func (s *Scanner) WaitFor(ctx context.Context, name string) (*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Service, 1)
	err := s.browse(ctx, func(svc *Service) bool {
		if svc.Instance != name && svc.Reader != name {
			return true
		}
		select {
		case found <- svc:
		default:
		}
		cancel()
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case svc := <-found:
		return svc, nil
	case <-ctx.Done():
		select {
		case svc := <-found:
			return svc, nil
		default:
		}
		return nil, fmt.Errorf("r2k server %s not found within %s", name, s.Timeout)
	}
}

// browse feeds parsed entries to fn until it returns false or ctx ends.
func (s *Scanner) browse(ctx context.Context, fn func(*Service) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := parseServiceEntry(entry)
				if svc == nil {
					continue
				}
				logging.Debug("Discovered r2k server", zap.String("service", svc.String()))
				if !fn(svc) {
					return
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Service.
// Returns nil if the entry carries no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Service {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	path := metadata["path"]
	if path == "" {
		path = DefaultPath
	}

	return &Service{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Reader:       metadata["reader"],
		Path:         path,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
