package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbocsi/teleop/control"
	"github.com/mbocsi/teleop/mcp"
	"github.com/mbocsi/teleop/server"
	"github.com/mbocsi/teleop/web"
)

func main() {
	var (
		addr        = flag.String("addr", getenvDefault("TELEOP_ADDR", ":8080"), "Listen address for the robot peer")
		monitorAddr = flag.String("monitor", getenvDefault("TELEOP_MONITOR", ":8081"), "Listen address for the monitor API")
		announce    = flag.Bool("mdns", true, "Advertise the endpoint over mDNS")
		mcpServer   = flag.Bool("mcp", false, "Expose status/stop tools over a stdio MCP server")
		maxLinear   = flag.Float64("max-linear", 0.3, "Max linear velocity (m/s)")
		maxAngular  = flag.Float64("max-angular", 0.5, "Max angular velocity (rad/s)")
		maxWrist    = flag.Float64("max-wrist", 1.0, "Max wrist velocity")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(logger))

	transport := server.NewTransport(*addr)
	transport.SetName("Phone Controller")
	transport.SetDescription("Controller endpoint for phone teleoperation")
	transport.SetAnnounce(*announce)

	state := control.NewState(control.Config{
		MaxLinearVelocity:  *maxLinear,
		MaxAngularVelocity: *maxAngular,
		MaxWristVelocity:   *maxWrist,
	}, transport.Send)

	monitor := web.NewMonitor(transport, state)
	transport.OnObservation(monitor.HandleObservation)
	transport.OnConnect(func(p *server.Peer) {
		slog.Info("Robot peer attached", "id", p.Id, "addr", p.RemoteAddr)
	})
	transport.OnDisconnect(func(p *server.Peer) {
		// Drop all velocity state to zero so a reattaching peer never
		// sees a stale command.
		state.EmergencyStop()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := monitor.Start(*monitorAddr); err != nil {
			slog.Error("Monitor API failed", "error", err.Error())
		}
	}()

	if *mcpServer {
		go func() {
			if err := mcp.NewMCPServer(transport, state).Start(); err != nil {
				slog.Error("MCP server failed", "error", err.Error())
			}
		}()
	}

	go func() {
		if err := transport.Start(); err != nil {
			slog.Error("Error starting controller endpoint", "error", err.Error())
			stop()
		}
	}()

	meta := transport.Meta()
	slog.Info("Share this address with the robot peer", "ip", meta.LocalIP, "addr", *addr)

	<-ctx.Done()
	slog.Info("Shutting down")

	if err := transport.Shutdown(); err != nil {
		slog.Error("There was an error when shutting down the controller endpoint", "error", err.Error())
	}
	if err := monitor.Shutdown(); err != nil {
		slog.Error("There was an error when shutting down the monitor API", "error", err.Error())
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
