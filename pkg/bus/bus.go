package bus

import (
	"sync"
)

// The Bus stands in for the host simulator's transport layer.  It carries the
// three topics the bridge cares about: world control (pause requests), model
// info (a model finished loading) and the physics profile.
//
// Callbacks run on the publisher's goroutine, which may not be the goroutine
// that subscribed.  Subscribers must do their own locking.

// WorldControl mirrors the host GUI's play/pause button: the message is a
// toggle request, not an absolute state.
type WorldControl struct {
	TogglePause bool
}

type ModelInfo struct {
	Name string
}

type Physics struct {
	StepSize float64
	Gravity  [3]float64
}

type Bus struct {
	mu          sync.Mutex
	controlSubs []func(WorldControl)
	modelSubs   []func(ModelInfo)
	physicsSubs []func(Physics)
}

func New() *Bus {
	return &Bus{}
}

func (b *Bus) SubscribeWorldControl(fn func(WorldControl)) {
	b.mu.Lock()
	b.controlSubs = append(b.controlSubs, fn)
	b.mu.Unlock()
}

func (b *Bus) SubscribeModelInfo(fn func(ModelInfo)) {
	b.mu.Lock()
	b.modelSubs = append(b.modelSubs, fn)
	b.mu.Unlock()
}

func (b *Bus) SubscribePhysics(fn func(Physics)) {
	b.mu.Lock()
	b.physicsSubs = append(b.physicsSubs, fn)
	b.mu.Unlock()
}

func (b *Bus) PublishWorldControl(msg WorldControl) {
	b.mu.Lock()
	subs := append([]func(WorldControl){}, b.controlSubs...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
}

func (b *Bus) PublishModelInfo(msg ModelInfo) {
	b.mu.Lock()
	subs := append([]func(ModelInfo){}, b.modelSubs...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
}

func (b *Bus) PublishPhysics(msg Physics) {
	b.mu.Lock()
	subs := append([]func(Physics){}, b.physicsSubs...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
}
