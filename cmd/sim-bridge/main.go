package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/roversim-team/roversim/sim-bridge/pkg/bridge"
	"github.com/roversim-team/roversim/sim-bridge/pkg/bus"
	"github.com/roversim-team/roversim/sim-bridge/pkg/launcher"
	"github.com/roversim-team/roversim/sim-bridge/pkg/link"
	"github.com/roversim-team/roversim/sim-bridge/pkg/overhead"
	"github.com/roversim-team/roversim/sim-bridge/pkg/rover"
	"github.com/roversim-team/roversim/sim-bridge/pkg/scene"
	"github.com/roversim-team/roversim/sim-bridge/pkg/tunable"
	"github.com/roversim-team/roversim/sim-bridge/pkg/world"
)

func main() {
	fmt.Print("---- Rover SITL bridge ----\n\n")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	scenePath := flag.String("scene", envOr("SCENE_FILE", "scene.yaml"),
		"scene description file (missing file means built-in defaults)")
	wsAddr := flag.String("listen", envOr("LISTEN_ADDR", "0.0.0.0:8080"),
		"websocket JSON-RPC listen address")
	tcpAddr := flag.String("tcp-listen", "",
		"optional raw TCP JSON-RPC listen address")
	sitlPath := flag.String("sitl", "", "autopilot SITL binary to launch")
	sitlArgs := flag.String("sitl-args", "", "arguments for the autopilot binary")
	snapshotPath := flag.String("snapshot-on-exit", "",
		"write a top-down PNG of the final state to this path")
	flag.Parse()

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancel()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	cfg := scene.Load(*scenePath)
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

	// Inserting the rover announces it on the bus, which triggers the
	// one-time joint binding.
	rov := rover.New(w, cfg.Model)
	if err := w.AddModel(rov); err != nil {
		fmt.Printf("Failed to insert rover: %v.\n", err)
		os.Exit(1)
	}
	select {
	case err := <-br.Fatal():
		fmt.Printf("Failed to bind rover: %v.\n", err)
		os.Exit(1)
	default:
	}

	var tunables tunable.Tunables
	tunables.Create("contact-mu", cfg.World.ContactMu, w.SetContactMu)

	srv, err := link.NewServer(link.NewService(br, &tunables))
	if err != nil {
		fmt.Printf("Failed to set up autopilot link: %v.\n", err)
		os.Exit(1)
	}
	go func() {
		defer cancel()
		if err := srv.ListenAndServe(ctx, *wsAddr); err != nil {
			fmt.Printf("Autopilot link failed: %v\n", err)
		}
	}()
	if *tcpAddr != "" {
		l, err := net.Listen("tcp", *tcpAddr)
		if err != nil {
			fmt.Printf("Failed to listen on %s: %v.\n", *tcpAddr, err)
			os.Exit(1)
		}
		fmt.Println("Autopilot link (raw TCP) listening:", *tcpAddr)
		go srv.ServeListener(ctx, l)
	}

	if *sitlPath != "" {
		sitl := &launcher.Launcher{Path: *sitlPath, Args: strings.Fields(*sitlArgs)}
		if err := sitl.Start(ctx); err != nil {
			fmt.Printf("Failed to start autopilot: %v.\n", err)
			os.Exit(1)
		}
		go func() {
			<-sitl.Done()
			cancel()
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-br.Fatal():
		fmt.Println("Shutting down:", err)
		cancel()
	}

	if *snapshotPath != "" {
		if err := overhead.Save(br.Snapshot(), *snapshotPath); err != nil {
			fmt.Printf("Failed to write snapshot: %v\n", err)
		} else {
			fmt.Println("Wrote snapshot:", *snapshotPath)
		}
	}
	fmt.Printf("Done, sim time %.3fs\n", w.SimTime())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
