package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/roversim-team/roversim/sim-bridge/pkg/bridge"
	"github.com/roversim-team/roversim/sim-bridge/pkg/bus"
	"github.com/roversim-team/roversim/sim-bridge/pkg/fdm"
	"github.com/roversim-team/roversim/sim-bridge/pkg/rover"
	"github.com/roversim-team/roversim/sim-bridge/pkg/scene"
	"github.com/roversim-team/roversim/sim-bridge/pkg/world"
)

// Drives the bridge through a fixed number of lockstep updates with constant
// servo demands and reports the real-time rate.  Useful for checking that
// the solver keeps up with the autopilot's loop rate on a given machine.

func main() {
	updates := flag.Int("updates", 10000, "number of lockstep updates to run")
	steer := flag.Float64("steer", 0, "constant steering demand [-1, 1]")
	throttle := flag.Float64("throttle", 0.5, "constant throttle demand [-1, 1]")
	scenePath := flag.String("scene", "", "scene description file (empty means defaults)")
	flag.Parse()

	cfg := scene.Default()
	if *scenePath != "" {
		cfg = scene.Load(*scenePath)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Bad scene description: %v.\n", err)
		os.Exit(1)
	}

	b := bus.New()
	w := world.New(cfg.World, b)
	br := bridge.New(cfg, b, w, func(name string) bridge.Model {
		m, _ := w.ModelByName(name).(bridge.Model)
		return m
	})
	if err := br.Init(); err != nil {
		fmt.Printf("Failed to initialize bridge: %v.\n", err)
		os.Exit(1)
	}
	if err := w.AddModel(rover.New(w, cfg.Model)); err != nil {
		fmt.Printf("Failed to insert rover: %v.\n", err)
		os.Exit(1)
	}
	select {
	case err := <-br.Fatal():
		fmt.Printf("Failed to bind rover: %v.\n", err)
		os.Exit(1)
	default:
	}

	nChannels := cfg.Link.SteerChannel + 1
	if cfg.Link.ThrottleChannel >= nChannels {
		nChannels = cfg.Link.ThrottleChannel + 1
	}
	servos := fdm.ServoPacket{Channels: make([]float64, nChannels)}
	servos.Channels[cfg.Link.SteerChannel] = *steer
	servos.Channels[cfg.Link.ThrottleChannel] = *throttle

	var pkt fdm.Packet
	start := time.Now()
	for i := 0; i < *updates; i++ {
		pkt = br.Exchange(servos)
	}
	elapsed := time.Since(start)

	solverSteps := *updates * cfg.Link.LockstepSteps
	fmt.Printf("%d updates (%d solver steps) in %v\n", *updates, solverSteps, elapsed)
	fmt.Printf("%.0f updates/sec, %.1fx real time\n",
		float64(*updates)/elapsed.Seconds(), pkt.Timestamp/elapsed.Seconds())
	fmt.Printf("Sim time %.3fs, position [%.3f %.3f %.3f], velocity [%.3f %.3f %.3f]\n",
		pkt.Timestamp,
		pkt.Body.Position[0], pkt.Body.Position[1], pkt.Body.Position[2],
		pkt.Velocity[0], pkt.Velocity[1], pkt.Velocity[2])
}
