package scene

import (
	"fmt"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"
)

// The scene description plays the role of the host simulator's world file.
// Everything in it is optional: fields that are missing (or that fail to
// parse) keep their fixed defaults.  Values that are present but nonsense
// (e.g. a zero step size) are rejected by Validate.

// Fixed joint identifiers, matching the rover model description.
const (
	FrontLeftWheelJoint     = "front_left_wheel_joint"
	FrontRightWheelJoint    = "front_right_wheel_joint"
	RearLeftWheelJoint      = "rear_left_wheel_joint"
	RearRightWheelJoint     = "rear_right_wheel_joint"
	FrontLeftSteeringJoint  = "front_left_steering_joint"
	FrontRightSteeringJoint = "front_right_steering_joint"
)

// StepSizeForAutopilot is the default physics step: 2.5ms, giving the 400Hz
// loop rate the autopilot expects.
const StepSizeForAutopilot = 0.0025

type WorldConfig struct {
	Gravity      []float64 `yaml:"gravity"`
	StepSize     float64   `yaml:"step_size"`
	ContactMu    float64   `yaml:"contact_mu"`
	GroundHeight float64   `yaml:"ground_height"`
}

type BodyConfig struct {
	Density float64   `yaml:"density"`
	Box     []float64 `yaml:"box"` // width, height, length
	ZOffset float64   `yaml:"z_offset"`
}

type TireConfig struct {
	Density  float64 `yaml:"density"`
	Diameter float64 `yaml:"diameter"`
	Width    float64 `yaml:"width"`
}

type JointNames struct {
	FrontLeftWheel  string `yaml:"front_left_wheel"`
	FrontRightWheel string `yaml:"front_right_wheel"`
	RearLeftWheel   string `yaml:"rear_left_wheel"`
	RearRightWheel  string `yaml:"rear_right_wheel"`
	FrontLeftSteer  string `yaml:"front_left_steering"`
	FrontRightSteer string `yaml:"front_right_steering"`
}

type ModelConfig struct {
	Name        string     `yaml:"name"`
	MotorServos int        `yaml:"motor_servos"`
	Body        BodyConfig `yaml:"body"`
	Wheelbase   float64    `yaml:"wheelbase"`
	Tread       float64    `yaml:"tread"`
	Tire        TireConfig `yaml:"tire"`
	FrontTorque float64    `yaml:"front_torque"`
	BackTorque  float64    `yaml:"back_torque"`
	MaxSpeed    float64    `yaml:"max_speed"`
	MaxSteer    float64    `yaml:"max_steer"`
	AeroLoad    float64    `yaml:"aero_load"`
	SteerForce  float64    `yaml:"steer_force"`
	Joints      JointNames `yaml:"joints"`
}

type LinkConfig struct {
	SteerChannel    int `yaml:"steer_channel"`
	ThrottleChannel int `yaml:"throttle_channel"`
	LockstepSteps   int `yaml:"lockstep_steps"`
}

type Config struct {
	World WorldConfig `yaml:"world"`
	Model ModelConfig `yaml:"model"`
	Link  LinkConfig  `yaml:"link"`
}

func Default() Config {
	return Config{
		World: WorldConfig{
			Gravity:      []float64{0, -9.80665, 0},
			StepSize:     StepSizeForAutopilot,
			ContactMu:    0.9,
			GroundHeight: 0,
		},
		Model: ModelConfig{
			Name:        "rover",
			MotorServos: 2,
			Body: BodyConfig{
				Density: 0.05,
				Box:     []float64{0.200, 0.050, 0.380},
				ZOffset: 0,
			},
			Wheelbase: 0.267,
			Tread:     0.260,
			Tire: TireConfig{
				Density:  0.03,
				Diameter: 0.088,
				Width:    0.033,
			},
			FrontTorque: 0,
			BackTorque:  2000,
			MaxSpeed:    10,
			MaxSteer:    0.6,
			AeroLoad:    0.1,
			SteerForce:  5000,
			Joints: JointNames{
				FrontLeftWheel:  FrontLeftWheelJoint,
				FrontRightWheel: FrontRightWheelJoint,
				RearLeftWheel:   RearLeftWheelJoint,
				RearRightWheel:  RearRightWheelJoint,
				FrontLeftSteer:  FrontLeftSteeringJoint,
				FrontRightSteer: FrontRightSteeringJoint,
			},
		},
		Link: LinkConfig{
			SteerChannel:    0,
			ThrottleChannel: 2,
			LockstepSteps:   1,
		},
	}
}

// Load reads the scene description, overlaying it onto the defaults.  A
// missing or malformed file is not fatal: the defaults are used.
func Load(path string) Config {
	cfg := Default()
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		fmt.Println("Scene description not readable, using defaults:", err)
		return cfg
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		fmt.Println("Failed to parse scene description, using defaults:", err)
		return Default()
	}
	return cfg
}

func (c Config) Validate() error {
	if c.World.StepSize <= 0 {
		return fmt.Errorf("step size must be positive, got %v", c.World.StepSize)
	}
	if len(c.World.Gravity) != 3 {
		return fmt.Errorf("gravity must have 3 components, got %d", len(c.World.Gravity))
	}
	if len(c.Model.Body.Box) != 3 {
		return fmt.Errorf("body box must have 3 components, got %d", len(c.Model.Body.Box))
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model name must not be empty")
	}
	if c.Model.Tire.Diameter <= 0 || c.Model.Tire.Width <= 0 {
		return fmt.Errorf("tire diameter and width must be positive")
	}
	if c.Model.Wheelbase <= 0 || c.Model.Tread <= 0 {
		return fmt.Errorf("wheelbase and tread must be positive")
	}
	if c.Model.MotorServos < 1 {
		return fmt.Errorf("motor servo count must be at least 1, got %d", c.Model.MotorServos)
	}
	if c.Link.LockstepSteps < 1 {
		return fmt.Errorf("lockstep steps must be at least 1, got %d", c.Link.LockstepSteps)
	}
	for name, ch := range map[string]int{
		"steer":    c.Link.SteerChannel,
		"throttle": c.Link.ThrottleChannel,
	} {
		if ch < 0 {
			return fmt.Errorf("%s channel must not be negative, got %d", name, ch)
		}
	}
	return nil
}
