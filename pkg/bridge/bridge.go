package bridge

import (
	"fmt"
	"sync"

	"github.com/roversim-team/roversim/sim-bridge/pkg/bus"
	"github.com/roversim-team/roversim/sim-bridge/pkg/fdm"
	"github.com/roversim-team/roversim/sim-bridge/pkg/scene"
)

// Host is the slice of the world the bridge borrows.  The world owns the
// solver; the bridge only drives it one step at a time.
type Host interface {
	Step()
	SimTime() float64
	StepSize() float64
	SetStepSize(float64)
	SetPaused(bool)
	ConnectStepEnd(func())
}

// Model is a vehicle the bridge can bind and drive once the host announces
// it.  The rover satisfies this.
type Model interface {
	Bind() error
	Apply(steer, throttle float64)
	State() fdm.Packet
}

// Bridge glues the host world to the autopilot: it reads the scene
// description, subscribes to host callbacks, paces the solver one step at a
// time and runs the one-time model binding when the named model appears.
//
// Host callbacks arrive on whatever goroutine published them, so all shared
// state is behind mu.  Stepping, and any read of engine-owned body state, is
// serialized by stepMu.  Lock order is stepMu before mu: the step-end hook
// takes mu while stepMu is held, so never acquire stepMu with mu held.
type Bridge struct {
	cfg    scene.Config
	bus    *bus.Bus
	host   Host
	lookup func(name string) Model

	stepMu sync.Mutex

	mu         sync.Mutex
	simPaused  bool
	stepLogged bool
	model      Model
	timestamp  float64
	lastTime   float64
	lastPos    [3]float64
	lastVel    [3]float64
	havePos    bool

	fatalC chan error
}

// New wires a bridge to its collaborators.  lookup resolves a model name
// announced on the bus to the model handle (the world registry, in
// practice).
func New(cfg scene.Config, b *bus.Bus, host Host, lookup func(name string) Model) *Bridge {
	return &Bridge{
		cfg:    cfg,
		bus:    b,
		host:   host,
		lookup: lookup,
		fatalC: make(chan error, 1),
	}
}

// Init applies the physics profile, announces it on the bus and hooks up the
// host callbacks.  The world is put (and kept) in pause: simulation time
// only ever advances through StepSim so the autopilot cannot miss a step.
func (b *Bridge) Init() error {
	if b.host == nil {
		return fmt.Errorf("no world handle")
	}
	if b.bus == nil {
		return fmt.Errorf("no bus handle")
	}

	fmt.Println("Model name:     ", b.cfg.Model.Name)
	fmt.Println("Nb motor servos:", b.cfg.Model.MotorServos)

	b.host.SetPaused(true)
	b.host.SetStepSize(b.cfg.World.StepSize)

	var gravity [3]float64
	copy(gravity[:], b.cfg.World.Gravity)
	b.bus.PublishPhysics(bus.Physics{
		StepSize: b.cfg.World.StepSize,
		Gravity:  gravity,
	})

	b.bus.SubscribeWorldControl(b.onWorldControl)
	b.bus.SubscribeModelInfo(b.onModelInfo)
	b.host.ConnectStepEnd(b.onStepEnd)
	return nil
}

// Fatal delivers unrecoverable failures from host callbacks (a missing
// required joint during binding).  The main loop should exit on it.
func (b *Bridge) Fatal() <-chan error {
	return b.fatalC
}

// StepSim advances the solver by exactly one step, unless the emulated pause
// is on.
func (b *Bridge) StepSim() {
	b.mu.Lock()
	paused := b.simPaused
	b.mu.Unlock()
	if paused {
		return
	}
	b.stepMu.Lock()
	b.host.Step()
	b.stepMu.Unlock()
}

// onStepEnd runs after every solver step, on the stepping goroutine.
func (b *Bridge) onStepEnd() {
	now := b.host.SimTime()
	b.mu.Lock()
	b.timestamp = now
	logIt := !b.stepLogged
	b.stepLogged = true
	b.mu.Unlock()
	if logIt {
		// The effective value is only known after the first iteration.
		fmt.Println("Simulation step size is =", b.host.StepSize())
	}
}

// onWorldControl emulates the host GUI's pause button.  The world itself
// stays paused permanently (stepping is explicit), so the play/pause state
// lives here.
func (b *Bridge) onWorldControl(msg bus.WorldControl) {
	if !msg.TogglePause {
		return
	}
	b.mu.Lock()
	b.simPaused = !b.simPaused
	paused := b.simPaused
	b.mu.Unlock()

	if paused {
		b.host.SetPaused(true)
		fmt.Println("Simulation is now paused")
	} else {
		fmt.Println("Resuming simulation")
	}
}

// SetSimPaused sets the emulated pause state directly (autopilot link).
func (b *Bridge) SetSimPaused(paused bool) {
	b.mu.Lock()
	b.simPaused = paused
	b.mu.Unlock()
	if paused {
		b.host.SetPaused(true)
	}
}

func (b *Bridge) SimPaused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.simPaused
}

// onModelInfo fires when the host finishes asynchronously loading a model.
// The configured model triggers the one-time binding; everything else is
// just logged.
func (b *Bridge) onModelInfo(msg bus.ModelInfo) {
	fmt.Println("New model:", msg.Name)
	if msg.Name != b.cfg.Model.Name {
		return
	}

	b.mu.Lock()
	alreadyBound := b.model != nil
	b.mu.Unlock()
	if alreadyBound {
		return
	}

	m := b.lookup(msg.Name)
	if m == nil {
		b.fail(fmt.Errorf("model %q announced but not found in world", msg.Name))
		return
	}
	if err := m.Bind(); err != nil {
		b.fail(fmt.Errorf("binding model %q: %v", msg.Name, err))
		return
	}

	b.mu.Lock()
	b.model = m
	b.mu.Unlock()
}

func (b *Bridge) fail(err error) {
	fmt.Println("Fatal:", err)
	select {
	case b.fatalC <- err:
	default:
	}
}

// Exchange is one lockstep round with the autopilot: apply the servo demands,
// advance the configured number of steps, return the resulting state.  While
// paused, actuation is still applied but time does not move.
func (b *Bridge) Exchange(p fdm.ServoPacket) fdm.Packet {
	steer := p.Channel(b.cfg.Link.SteerChannel)
	throttle := p.Channel(b.cfg.Link.ThrottleChannel)

	b.mu.Lock()
	model := b.model
	b.mu.Unlock()
	if model != nil {
		model.Apply(steer, throttle)
	}

	for i := 0; i < b.cfg.Link.LockstepSteps; i++ {
		b.StepSim()
	}
	return b.Snapshot()
}

// Snapshot assembles the FDM packet from the bound model and the solver
// clock.  Linear velocity is a finite difference across snapshots; while
// time is frozen the previous velocity is reported.
//
// stepMu is held across the model read so a concurrent connection cannot
// step the solver while body state is being read out of it.
func (b *Bridge) Snapshot() fdm.Packet {
	b.stepMu.Lock()
	defer b.stepMu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	pkt := fdm.Packet{
		Timestamp: b.timestamp,
		Paused:    b.simPaused,
	}
	if b.model == nil {
		return pkt
	}

	st := b.model.State()
	pkt.Body = st.Body
	pkt.Wheels = st.Wheels

	dt := pkt.Timestamp - b.lastTime
	if b.havePos && dt > 0 {
		for i := range pkt.Velocity {
			b.lastVel[i] = (pkt.Body.Position[i] - b.lastPos[i]) / dt
		}
	}
	pkt.Velocity = b.lastVel
	if dt > 0 || !b.havePos {
		b.lastPos = pkt.Body.Position
		b.lastTime = pkt.Timestamp
		b.havePos = true
	}
	return pkt
}

// Config returns the scene description the bridge was initialized with.
func (b *Bridge) Config() scene.Config {
	return b.cfg
}
