package bridge

import (
	"math"
	"sync"
	"testing"

	"github.com/roversim-team/roversim/sim-bridge/pkg/bus"
	"github.com/roversim-team/roversim/sim-bridge/pkg/fdm"
	"github.com/roversim-team/roversim/sim-bridge/pkg/scene"
)

type fakeHost struct {
	mu       sync.Mutex
	steps    int
	stepSize float64
	paused   bool
	hooks    []func()
}

func newFakeHost() *fakeHost {
	return &fakeHost{stepSize: scene.StepSizeForAutopilot}
}

func (h *fakeHost) Step() {
	h.mu.Lock()
	h.steps++
	hooks := append([]func(){}, h.hooks...)
	h.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (h *fakeHost) SimTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.steps) * h.stepSize
}

func (h *fakeHost) StepSize() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stepSize
}

func (h *fakeHost) SetStepSize(s float64) {
	h.mu.Lock()
	h.stepSize = s
	h.mu.Unlock()
}

func (h *fakeHost) SetPaused(p bool) {
	h.mu.Lock()
	h.paused = p
	h.mu.Unlock()
}

func (h *fakeHost) ConnectStepEnd(fn func()) {
	h.mu.Lock()
	h.hooks = append(h.hooks, fn)
	h.mu.Unlock()
}

func (h *fakeHost) Steps() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.steps
}

type fakeRover struct {
	host    *fakeHost
	bindErr error

	mu        sync.Mutex
	bindCalls int
	steers    []float64
	throttles []float64
}

func (m *fakeRover) Bind() error {
	m.mu.Lock()
	m.bindCalls++
	m.mu.Unlock()
	return m.bindErr
}

func (m *fakeRover) Apply(steer, throttle float64) {
	m.mu.Lock()
	m.steers = append(m.steers, steer)
	m.throttles = append(m.throttles, throttle)
	m.mu.Unlock()
}

func (m *fakeRover) State() fdm.Packet {
	// Drives forward 0.1m per step so velocity is observable.
	return fdm.Packet{
		Body: fdm.Attitude{
			Position:   [3]float64{0, 0, 0.1 * float64(m.host.Steps())},
			Quaternion: [4]float64{1, 0, 0, 0},
		},
	}
}

func newTestBridge(t *testing.T, m *fakeRover) (*Bridge, *bus.Bus, *fakeHost) {
	t.Helper()
	b := bus.New()
	host := newFakeHost()
	if m != nil {
		m.host = host
	}
	br := New(scene.Default(), b, host, func(name string) Model {
		if m == nil {
			return nil
		}
		return m
	})
	if err := br.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return br, b, host
}

func TestInitAnnouncesPhysicsProfile(t *testing.T) {
	b := bus.New()
	host := newFakeHost()

	var profiles []bus.Physics
	b.SubscribePhysics(func(msg bus.Physics) {
		profiles = append(profiles, msg)
	})

	br := New(scene.Default(), b, host, func(string) Model { return nil })
	if err := br.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if len(profiles) != 1 || profiles[0].StepSize != scene.StepSizeForAutopilot {
		t.Fatalf("Expected physics announcement with default step size, got %v", profiles)
	}
	if !host.paused {
		t.Fatal("Init must leave the world paused")
	}
}

func TestInitRejectsMissingHandles(t *testing.T) {
	br := New(scene.Default(), nil, nil, nil)
	if err := br.Init(); err == nil {
		t.Fatal("Expected Init to fail without handles")
	}
}

func TestModelAnnouncementBindsOnce(t *testing.T) {
	m := &fakeRover{}
	_, b, _ := newTestBridge(t, m)

	b.PublishModelInfo(bus.ModelInfo{Name: "rover"})
	b.PublishModelInfo(bus.ModelInfo{Name: "rover"})

	if m.bindCalls != 1 {
		t.Fatalf("Expected exactly one bind, got %d", m.bindCalls)
	}
}

func TestUnknownModelAnnouncementIgnored(t *testing.T) {
	m := &fakeRover{}
	br, b, _ := newTestBridge(t, m)

	b.PublishModelInfo(bus.ModelInfo{Name: "ground_plane"})

	if m.bindCalls != 0 {
		t.Fatalf("Expected no bind for unrelated model, got %d", m.bindCalls)
	}
	select {
	case err := <-br.Fatal():
		t.Fatalf("Unexpected fatal error: %v", err)
	default:
	}
}

func TestBindFailureIsFatal(t *testing.T) {
	m := &fakeRover{bindErr: errMissingJoint}
	br, b, _ := newTestBridge(t, m)

	b.PublishModelInfo(bus.ModelInfo{Name: "rover"})

	select {
	case err := <-br.Fatal():
		if err == nil {
			t.Fatal("Expected a non-nil fatal error")
		}
	default:
		t.Fatal("Expected bind failure to be fatal")
	}
}

var errMissingJoint = errFake("could not find front left wheel joint")

type errFake string

func (e errFake) Error() string { return string(e) }

func TestPauseToggleGatesStepping(t *testing.T) {
	br, b, host := newTestBridge(t, nil)

	br.StepSim()
	if host.Steps() != 1 {
		t.Fatalf("Expected 1 step, got %d", host.Steps())
	}

	b.PublishWorldControl(bus.WorldControl{TogglePause: true})
	br.StepSim()
	if host.Steps() != 1 {
		t.Fatalf("Expected stepping gated while paused, got %d steps", host.Steps())
	}
	if !br.SimPaused() {
		t.Fatal("Expected emulated pause on")
	}

	b.PublishWorldControl(bus.WorldControl{TogglePause: true})
	br.StepSim()
	if host.Steps() != 2 {
		t.Fatalf("Expected stepping resumed, got %d steps", host.Steps())
	}
}

func TestExchangeLockstep(t *testing.T) {
	m := &fakeRover{}
	br, b, host := newTestBridge(t, m)
	b.PublishModelInfo(bus.ModelInfo{Name: "rover"})

	// Steer on channel 0, throttle on channel 2 (defaults); throttle out of
	// range must arrive clamped.
	pkt := br.Exchange(fdm.ServoPacket{Channels: []float64{0.5, 0, 7}})

	if host.Steps() != 1 {
		t.Fatalf("Expected one lockstep step, got %d", host.Steps())
	}
	if len(m.steers) != 1 || m.steers[0] != 0.5 {
		t.Fatalf("Expected steer 0.5 applied, got %v", m.steers)
	}
	if len(m.throttles) != 1 || m.throttles[0] != 1 {
		t.Fatalf("Expected clamped throttle 1 applied, got %v", m.throttles)
	}
	if math.Abs(pkt.Timestamp-scene.StepSizeForAutopilot) > 1e-9 {
		t.Fatalf("Expected timestamp of one step, got %v", pkt.Timestamp)
	}

	// Second round: velocity is the finite difference, 0.1m per 2.5ms step.
	pkt = br.Exchange(fdm.ServoPacket{Channels: []float64{0, 0, 0}})
	wantVel := 0.1 / scene.StepSizeForAutopilot
	if math.Abs(pkt.Velocity[2]-wantVel) > 1e-6 {
		t.Fatalf("Expected forward velocity %v, got %v", wantVel, pkt.Velocity[2])
	}
}

func TestConcurrentExchangeAndSnapshot(t *testing.T) {
	m := &fakeRover{}
	br, b, host := newTestBridge(t, m)
	b.PublishModelInfo(bus.ModelInfo{Name: "rover"})

	// Several connections exchanging and snapshotting at once: snapshots
	// must not read body state mid-step, and the lock ordering must not
	// deadlock.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				br.Exchange(fdm.ServoPacket{Channels: []float64{0.1, 0, 0.5}})
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				pkt := br.Snapshot()
				if pkt.Timestamp < 0 {
					t.Errorf("Negative timestamp: %v", pkt.Timestamp)
					return
				}
			}
		}()
	}
	wg.Wait()

	if host.Steps() != 200 {
		t.Fatalf("Expected 200 steps from 4x50 exchanges, got %d", host.Steps())
	}
}

func TestExchangeWhilePausedFreezesTime(t *testing.T) {
	m := &fakeRover{}
	br, b, _ := newTestBridge(t, m)
	b.PublishModelInfo(bus.ModelInfo{Name: "rover"})

	br.Exchange(fdm.ServoPacket{Channels: []float64{0, 0, 0.5}})
	before := br.Snapshot().Timestamp

	br.SetSimPaused(true)
	pkt := br.Exchange(fdm.ServoPacket{Channels: []float64{1, 0, 1}})

	if pkt.Timestamp != before {
		t.Fatalf("Expected frozen timestamp %v, got %v", before, pkt.Timestamp)
	}
	if !pkt.Paused {
		t.Fatal("Expected packet to report paused")
	}
	// Actuation is still applied while paused.
	if len(m.steers) != 2 || m.steers[1] != 1 {
		t.Fatalf("Expected steering applied while paused, got %v", m.steers)
	}
}
