package main

import (
	"flag"
	"image"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbocsi/teleop/peer"
	"github.com/mbocsi/teleop/proto"
)

// Mock robot peer: connects to the phone's controller endpoint,
// integrates received velocity commands into a state vector, and
// streams synthetic camera frames back at 50 Hz.
func main() {
	var (
		addr    = flag.String("addr", os.Getenv("TELEOP_CONTROLLER"), "Controller endpoint, e.g. ws://192.168.1.102:8080/ (empty: discover via mDNS)")
		quality = flag.Int("quality", 80, "JPEG quality for camera frames")
		debug   = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	url := *addr
	if url == "" {
		service, err := peer.Discover(5 * time.Second)
		if err != nil {
			slog.Error("No controller endpoint found", "error", err.Error())
			os.Exit(1)
		}
		url = service.URL()
	}

	cfg := peer.DefaultConfig(url)
	cfg.VideoQuality = *quality
	client := peer.NewClient(cfg)

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(stop)
	}()

	go func() {
		if err := client.Run(stop); err != nil {
			slog.Error("Peer loop failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	state := make([]float64, proto.StateLen)
	ticker := time.NewTicker(20 * time.Millisecond) // 50 Hz
	defer ticker.Stop()

	const dt = 0.02
	tick := 0
	for {
		select {
		case <-stop:
			slog.Info("Stopping robot peer")
			return
		case <-ticker.C:
		}
		tick++

		action := client.Action()
		integrate(state, action, dt)

		frames := map[string]image.Image{
			proto.ChannelImageFront: syntheticFrame(tick, 0),
			proto.ChannelImageWrist: syntheticFrame(tick, 128),
		}
		obs, err := peer.BuildObservation(state, frames, cfg.VideoQuality)
		if err != nil {
			slog.Warn("Failed to build observation", "error", err.Error())
			continue
		}
		if err := client.SendObservation(obs); err != nil {
			slog.Warn("Failed to send observation", "error", err.Error())
		}

		if !action.IsZero() && tick%25 == 0 {
			slog.Info("Driving",
				"x.vel", action.XVel,
				"y.vel", action.YVel,
				"theta.vel", action.ThetaVel,
			)
		}
	}
}

// integrate applies one control period of the commanded velocities to
// the mock state vector: joints 0-5 from the arm fields, base triple
// from x/y/theta.
func integrate(state []float64, a proto.Action, dt float64) {
	joints := [proto.StateArmLen]float64{
		a.ShoulderPan, a.ShoulderLift, a.ElbowFlex,
		a.WristFlex, a.WristRoll, a.Gripper,
	}
	for i, v := range joints {
		state[i] += v * dt
	}
	state[proto.StateArmLen] += a.XVel * dt
	state[proto.StateArmLen+1] += a.YVel * dt
	state[proto.StateArmLen+2] += a.ThetaVel * dt
}

// syntheticFrame produces a small gradient image that changes every
// tick so the phone sees motion without a real camera.
func syntheticFrame(tick, offset int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x*4 + tick + offset) % 256),
				G: uint8((y*5 + tick) % 256),
				B: uint8(offset),
				A: 255,
			})
		}
	}
	return img
}
