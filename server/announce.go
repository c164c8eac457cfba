package server

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service type the controller advertises and
// robot peers look up, as an alternative to manual IP entry.
const ServiceType = "_teleop-ws._tcp"

type announcer struct {
	server *mdns.Server
}

func startAnnouncer(addr net.Addr) (*announcer, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("cannot announce non-TCP address %v", addr)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "teleop-controller"
	}

	service, err := mdns.NewMDNSService(
		host,
		ServiceType,
		"",
		"",
		tcpAddr.Port,
		nil,
		[]string{"Phone teleoperation controller endpoint"},
	)
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, err
	}

	slog.Info("Announcing controller endpoint over mDNS", "service", ServiceType, "port", tcpAddr.Port)
	return &announcer{server: server}, nil
}

func (a *announcer) shutdown() {
	if err := a.server.Shutdown(); err != nil {
		slog.Warn("Failed to shut down mDNS announcer", "error", err.Error())
	}
}
