package world

/*
#include <stdint.h>
*/
import "C"

import (
	"fmt"
	"sync"

	"github.com/ianremmler/ode"

	"github.com/roversim-team/roversim/sim-bridge/pkg/bus"
	"github.com/roversim-team/roversim/sim-bridge/pkg/scene"
)

func init() {
	ode.Init(0, ode.AllAFlag)
}

// Model is anything that can be inserted into the world's registry.  The
// bridge looks models up by name when they are announced on the bus.
type Model interface {
	Name() string
}

// World wraps the engine-owned handles: the dynamics world, the collision
// space and the contact joint group.  The engine owns stepping, collision
// resolution and joint constraints; this package only drives them.
//
// Time never advances on its own.  The world is permanently paused in the
// host sense: each call to Step advances the solver by exactly one step, so
// an external caller controls simulation time deterministically.
type World struct {
	ode.World
	ode.Space
	JointGroup ode.JointGroup

	bus *bus.Bus

	mu        sync.Mutex
	stepSize  float64
	contactMu float64
	paused    bool
	steps     int64
	stepEnd   []func()
	models    map[string]Model
}

func New(cfg scene.WorldConfig, b *bus.Bus) *World {
	w := &World{
		World:      ode.NewWorld(),
		Space:      ode.NilSpace().NewHashSpace(),
		JointGroup: ode.NewJointGroup(10000),
		bus:        b,
		stepSize:   cfg.StepSize,
		contactMu:  cfg.ContactMu,
		paused:     true,
		models:     map[string]Model{},
	}
	w.World.SetGravity(ode.V3(cfg.Gravity[0], cfg.Gravity[1], cfg.Gravity[2]))
	w.World.SetAutoDisable(false)
	w.Space.NewPlane(ode.V4(0, 1, 0, cfg.GroundHeight))
	return w
}

// Step advances the solver by exactly one step: collide, step, flush contact
// joints.  Step-end hooks fire afterwards, on the calling goroutine.  Callers
// are responsible for serializing calls to Step.
func (w *World) Step() {
	w.Space.Collide(w, near)
	w.World.Step(w.StepSize())
	w.JointGroup.Empty()

	w.mu.Lock()
	w.steps++
	hooks := append([]func(){}, w.stepEnd...)
	w.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// near creates a contact joint for each colliding pair, skipping pairs that
// are already connected by a joint (e.g. a wheel and its chassis).
func near(data interface{}, obj1, obj2 ode.Geom) {
	w := data.(*World)
	body1, body2 := obj1.Body(), obj2.Body()
	if body1 != 0 && body2 != 0 && body1.Connected(body2) {
		return
	}
	cts := obj1.Collide(obj2, 1, 0)
	if len(cts) > 0 {
		contact := ode.NewContact()
		contact.Surface.Mode = 0
		contact.Surface.Mu = w.ContactMu()
		contact.Surface.Mu2 = 0
		contact.Geom = cts[0]
		ct := w.World.NewContactJoint(w.JointGroup, contact)
		ct.Attach(body1, body2)
	}
}

// SimTime is the solver clock in seconds: steps taken times the step size.
func (w *World) SimTime() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return float64(w.steps) * w.stepSize
}

func (w *World) StepSize() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stepSize
}

func (w *World) SetStepSize(s float64) {
	w.mu.Lock()
	w.stepSize = s
	w.mu.Unlock()
}

func (w *World) ContactMu() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.contactMu
}

func (w *World) SetContactMu(mu float64) {
	w.mu.Lock()
	w.contactMu = mu
	w.mu.Unlock()
}

// SetPaused records the host pause flag.  Explicit Step calls still work
// while paused; pause gating for externally driven stepping lives in the
// bridge, which emulates the host's play/pause control.
func (w *World) SetPaused(paused bool) {
	w.mu.Lock()
	w.paused = paused
	w.mu.Unlock()
}

func (w *World) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// ConnectStepEnd registers a hook called after every completed step, on the
// stepping goroutine.  Hooks must do their own locking.
func (w *World) ConnectStepEnd(fn func()) {
	w.mu.Lock()
	w.stepEnd = append(w.stepEnd, fn)
	w.mu.Unlock()
}

// AddModel inserts a model into the registry and announces it on the bus,
// emulating the host's asynchronous model loading notification.
func (w *World) AddModel(m Model) error {
	w.mu.Lock()
	if _, ok := w.models[m.Name()]; ok {
		w.mu.Unlock()
		return fmt.Errorf("duplicate model name: %s", m.Name())
	}
	w.models[m.Name()] = m
	w.mu.Unlock()

	if w.bus != nil {
		w.bus.PublishModelInfo(bus.ModelInfo{Name: m.Name()})
	}
	return nil
}

func (w *World) ModelByName(name string) Model {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.models[name]
}

// CollisionRadius extracts the radius of a cylinder or sphere collision
// shape.  Any other shape (or no shape at all) yields zero.
func CollisionRadius(g ode.Geom) float64 {
	if g == nil {
		return 0
	}
	switch s := g.(type) {
	case ode.Cylinder:
		radius, _ := s.Params()
		return radius
	case ode.Sphere:
		return s.Radius()
	}
	return 0
}
