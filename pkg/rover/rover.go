package rover

import (
	"fmt"
	"sync"

	"github.com/ianremmler/ode"

	"github.com/roversim-team/roversim/sim-bridge/pkg/fdm"
	"github.com/roversim-team/roversim/sim-bridge/pkg/scene"
	"github.com/roversim-team/roversim/sim-bridge/pkg/world"
)

// Wheel indices within a rover.
const (
	FrontLeft = iota
	FrontRight
	RearLeft
	RearRight
	numWheels
)

// Steering joints are velocity servos: the angle error is clamped to this
// much per update before being converted to a joint velocity.
const steerRateClamp = 0.1

// Wheel is one wheel body plus its suspension joint.  The hinge2 joint
// carries both axes: axis 1 is the steering axis, axis 2 is the drive axis,
// so the front joints double as the steering joints.
type Wheel struct {
	Joint   ode.Hinge2Joint
	body    ode.Body
	geom    ode.Geom
	steered bool
	driven  bool
}

func (w *Wheel) Position() ode.Vector3 {
	return w.body.Position()
}

func (w *Wheel) Quaternion() ode.Quaternion {
	return w.body.Quaternion()
}

// Rover is the vehicle model inserted into the world.  Its joints are owned
// by the engine; the rover only holds borrowed handles, registered under the
// joint names given in the scene description.
type Rover struct {
	cfg scene.ModelConfig

	mu     sync.Mutex
	body   ode.Body
	geom   ode.Geom
	wheels [numWheels]*Wheel
	joints map[string]*Wheel
	radii  [numWheels]float64
	bound  bool
}

func New(w *world.World, cfg scene.ModelConfig) *Rover {
	r := &Rover{
		cfg:    cfg,
		joints: map[string]*Wheel{},
	}

	// Chassis: box body dropped from just above the wheel centres.
	wheelY := cfg.Tire.Diameter/2 + 0.005
	mass := ode.NewMass()
	mass.SetBox(cfg.Body.Density, ode.V3(cfg.Body.Box[0], cfg.Body.Box[1], cfg.Body.Box[2]))
	r.body = w.NewBody()
	r.body.SetMass(mass)
	r.body.SetPosition(ode.V3(0, wheelY+cfg.Body.ZOffset, 0))
	r.geom = w.NewBox(ode.V3(cfg.Body.Box[0], cfg.Body.Box[1], cfg.Body.Box[2]))
	r.geom.SetBody(r.body)

	anchors := [numWheels]ode.Vector3{
		FrontLeft:  ode.V3(cfg.Tread/2, wheelY, cfg.Wheelbase/2),
		FrontRight: ode.V3(-cfg.Tread/2, wheelY, cfg.Wheelbase/2),
		RearLeft:   ode.V3(cfg.Tread/2, wheelY, -cfg.Wheelbase/2),
		RearRight:  ode.V3(-cfg.Tread/2, wheelY, -cfg.Wheelbase/2),
	}
	for i := 0; i < numWheels; i++ {
		wheel := newWheel(w, r.body, cfg, anchors[i])
		wheel.steered = i == FrontLeft || i == FrontRight
		wheel.driven = true
		r.wheels[i] = wheel
	}

	// Register the engine joints under their scene-description names.  The
	// front hinge2 joints are registered a second time as the steering
	// joints: steering is their first axis.
	r.joints[cfg.Joints.FrontLeftWheel] = r.wheels[FrontLeft]
	r.joints[cfg.Joints.FrontRightWheel] = r.wheels[FrontRight]
	r.joints[cfg.Joints.RearLeftWheel] = r.wheels[RearLeft]
	r.joints[cfg.Joints.RearRightWheel] = r.wheels[RearRight]
	r.joints[cfg.Joints.FrontLeftSteer] = r.wheels[FrontLeft]
	r.joints[cfg.Joints.FrontRightSteer] = r.wheels[FrontRight]

	return r
}

func newWheel(w *world.World, chassis ode.Body, cfg scene.ModelConfig, anchor ode.Vector3) *Wheel {
	mass := ode.NewMass()
	mass.SetCylinder(cfg.Tire.Density, 1, cfg.Tire.Diameter/2, cfg.Tire.Width)
	body := w.NewBody()
	body.SetMass(mass)
	body.SetPosition(anchor)
	geom := w.NewCylinder(cfg.Tire.Diameter/2, cfg.Tire.Width)
	geom.SetBody(body)
	joint := w.World.NewHinge2Joint(ode.JointGroup(0))
	joint.Attach(chassis, body)
	joint.SetAnchor(anchor)
	return &Wheel{Joint: joint, body: body, geom: geom}
}

// Name implements world.Model.
func (r *Rover) Name() string {
	return r.cfg.Name
}

// Joint looks up an engine joint by the fixed identifiers the binding uses.
func (r *Rover) Joint(name string) (*Wheel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.joints[name]
	return w, ok
}

// Bind is the one-time joint discovery and parameter assignment that runs
// when the model is announced.  Every required joint must resolve; a missing
// joint is fatal because the bridge cannot drive a partial vehicle.  Binding
// a second time is a no-op.
func (r *Rover) Bind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound {
		return nil
	}

	fmt.Println("Searching joints...")
	required := []struct{ name, desc string }{
		{scene.FrontLeftWheelJoint, "front left wheel joint"},
		{scene.FrontRightWheelJoint, "front right wheel joint"},
		{scene.RearLeftWheelJoint, "rear left wheel joint"},
		{scene.RearRightWheelJoint, "rear right wheel joint"},
		{scene.FrontLeftSteeringJoint, "front left steering joint"},
		{scene.FrontRightSteeringJoint, "front right steering joint"},
	}
	for _, req := range required {
		if _, ok := r.joints[req.name]; !ok {
			return fmt.Errorf("could not find %s (%q)", req.desc, req.name)
		}
		fmt.Println("Found", req.desc)
	}

	// Brake emulation: joint stops with stop_erp = 0 so no position
	// correction torques act, and stop_cfm = 10 for a little damping.
	for _, wheel := range r.wheels {
		wheel.Joint.SetParam(ode.HiStopJtParam, 0)
		wheel.Joint.SetParam(ode.LoStopJtParam, 0)
		wheel.Joint.SetParam(ode.StopERPJtParam, 0)
		wheel.Joint.SetParam(ode.StopCFMJtParam, 10)
	}

	// Wheel radii come from the collision shapes.  A shape the extractor
	// doesn't understand yields zero; stored radii are never negative.
	for i, wheel := range r.wheels {
		radius := world.CollisionRadius(wheel.geom)
		if radius < 0 {
			radius = 0
		}
		r.radii[i] = radius
	}

	r.bound = true
	fmt.Println("Rover joints bound, wheel radii:", r.radii)
	return nil
}

func (r *Rover) Bound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

func (r *Rover) WheelRadii() [numWheels]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.radii
}

// Apply converts normalized steering and throttle demands into joint servo
// parameters.  steer and throttle are in [-1, 1]; limits come from the scene
// description.  Does nothing until the rover is bound.
func (r *Rover) Apply(steer, throttle float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.bound {
		return
	}

	target := steer * r.cfg.MaxSteer
	for i, wheel := range r.wheels {
		if wheel.steered {
			d := target - wheel.Joint.Angle1()
			if d > steerRateClamp {
				d = steerRateClamp
			}
			if d < -steerRateClamp {
				d = -steerRateClamp
			}
			wheel.Joint.SetParam(ode.VelJtParam, d*10)
			wheel.Joint.SetParam(ode.FMaxJtParam, r.cfg.SteerForce)
		} else {
			// Rear axles don't steer; hold the steering axis.
			wheel.Joint.SetParam(ode.VelJtParam, 0)
			wheel.Joint.SetParam(ode.FMaxJtParam, r.cfg.SteerForce)
		}

		radius := r.radii[i]
		if radius <= 0 {
			radius = r.cfg.Tire.Diameter / 2
		}
		torque := r.cfg.BackTorque
		if i == FrontLeft || i == FrontRight {
			torque = r.cfg.FrontTorque
		}
		wheel.Joint.SetParam(ode.VelJtParam2, -throttle*r.cfg.MaxSpeed/radius)
		wheel.Joint.SetParam(ode.FMaxJtParam2, torque)
	}
}

// Position returns the chassis position.
func (r *Rover) Position() ode.Vector3 {
	return r.body.Position()
}

// Quaternion returns the chassis orientation.
func (r *Rover) Quaternion() ode.Quaternion {
	return r.body.Quaternion()
}

// Wheel returns wheel i (FrontLeft..RearRight).
func (r *Rover) Wheel(i int) *Wheel {
	return r.wheels[i]
}

// SteerAngle reports the current front steering angle.
func (r *Rover) SteerAngle() float64 {
	return r.wheels[FrontLeft].Joint.Angle1()
}

// SpinRate reports wheel i's drive axis rate.
func (r *Rover) SpinRate(i int) float64 {
	return r.wheels[i].Joint.Angle2Rate()
}

// State assembles the vehicle part of the FDM packet: chassis attitude plus
// per-wheel attitude, spin rate and steering angle.  Timestamp and velocity
// are the bridge's business.
func (r *Rover) State() fdm.Packet {
	pkt := fdm.Packet{
		Body: attitude(r.body.Position(), r.body.Quaternion()),
	}
	for _, wheel := range r.wheels {
		pkt.Wheels = append(pkt.Wheels, fdm.Wheel{
			Attitude: attitude(wheel.body.Position(), wheel.body.Quaternion()),
			SpinRate: wheel.Joint.Angle2Rate(),
			Steer:    wheel.Joint.Angle1(),
		})
	}
	return pkt
}

func attitude(pos ode.Vector3, quat ode.Quaternion) fdm.Attitude {
	var a fdm.Attitude
	copy(a.Position[:], pos)
	copy(a.Quaternion[:], quat)
	return a
}
