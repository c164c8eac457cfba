package peer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/mbocsi/teleop/server"
)

// DiscoveredService represents a controller endpoint found via mDNS.
type DiscoveredService struct {
	ServiceName string
	Address     string
	Port        int
	TXTRecords  []string
}

// URL returns the WebSocket URL for dialing the discovered endpoint.
func (s *DiscoveredService) URL() string {
	return fmt.Sprintf("ws://%s:%d/", s.Address, s.Port)
}

// Discover looks up the first advertised controller endpoint on the
// local network, as an alternative to entering the phone's IP by hand.
func Discover(timeout time.Duration) (*DiscoveredService, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)

	// Start discovery in background
	go func() {
		defer close(entriesCh)
		mdns.Lookup(server.ServiceType, entriesCh)
	}()

	// Wait for first result or timeout
	select {
	case entry := <-entriesCh:
		if entry == nil {
			return nil, fmt.Errorf("no %s service found", server.ServiceType)
		}

		var address string
		if entry.AddrV4 != nil {
			address = entry.AddrV4.String()
		} else if entry.AddrV6 != nil {
			address = fmt.Sprintf("[%s]", entry.AddrV6.String())
		} else {
			return nil, fmt.Errorf("no valid address found for service")
		}

		service := &DiscoveredService{
			ServiceName: entry.Name,
			Address:     address,
			Port:        entry.Port,
			TXTRecords:  entry.InfoFields,
		}

		slog.Info("Discovered controller endpoint",
			"service_name", service.ServiceName,
			"address", service.Address,
			"port", service.Port,
		)

		return service, nil

	case <-time.After(timeout):
		return nil, fmt.Errorf("mDNS discovery timeout for %s", server.ServiceType)
	}
}
