package tunable

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Tunables are float parameters (contact friction, steer rate and the like)
// that can be nudged at runtime over the autopilot link without restarting
// the bridge.

type Tunable struct {
	Name     string
	bits     uint64
	OnChange func(float64)
}

func (t *Tunable) Add(delta float64) float64 {
	for {
		old := atomic.LoadUint64(&t.bits)
		newV := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&t.bits, old, math.Float64bits(newV)) {
			fmt.Println("Tunable", t.Name, "=", newV)
			if t.OnChange != nil {
				t.OnChange(newV)
			}
			return newV
		}
	}
}

func (t *Tunable) Set(value float64) {
	atomic.StoreUint64(&t.bits, math.Float64bits(value))
	fmt.Println("Tunable", t.Name, "=", value)
	if t.OnChange != nil {
		t.OnChange(value)
	}
}

func (t *Tunable) Get() float64 {
	return math.Float64frombits(atomic.LoadUint64(&t.bits))
}

type Tunables struct {
	All []*Tunable
}

func (t *Tunables) Create(name string, value float64, onChange func(float64)) *Tunable {
	newTunable := &Tunable{
		Name:     name,
		bits:     math.Float64bits(value),
		OnChange: onChange,
	}
	t.All = append(t.All, newTunable)
	return newTunable
}

func (t *Tunables) ByName(name string) *Tunable {
	for _, tn := range t.All {
		if tn.Name == name {
			return tn
		}
	}
	return nil
}
