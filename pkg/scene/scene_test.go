package scene

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load("/does/not/exist.yaml")
	def := Default()
	if cfg.Model.Name != def.Model.Name || cfg.World.StepSize != def.World.StepSize {
		t.Fatalf("Expected defaults for missing file, got %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config must validate: %v", err)
	}
}

func TestLoadOverlaysOnlyNamedFields(t *testing.T) {
	path := writeScene(t, `
model:
  name: buggy
  back_torque: 1500
world:
  step_size: 0.005
`)
	cfg := Load(path)

	if cfg.Model.Name != "buggy" {
		t.Fatalf("Expected model name override, got %q", cfg.Model.Name)
	}
	if cfg.Model.BackTorque != 1500 {
		t.Fatalf("Expected back torque override, got %v", cfg.Model.BackTorque)
	}
	if cfg.World.StepSize != 0.005 {
		t.Fatalf("Expected step size override, got %v", cfg.World.StepSize)
	}
	// Untouched fields keep their defaults.
	if cfg.Model.MaxSpeed != 10 {
		t.Fatalf("Expected default max speed, got %v", cfg.Model.MaxSpeed)
	}
	if cfg.Model.Joints.FrontLeftWheel != FrontLeftWheelJoint {
		t.Fatalf("Expected default joint name, got %q", cfg.Model.Joints.FrontLeftWheel)
	}
}

func TestLoadMalformedFileUsesDefaults(t *testing.T) {
	path := writeScene(t, "model: [not a mapping")
	cfg := Load(path)
	def := Default()
	if cfg.Model.Name != def.Model.Name {
		t.Fatalf("Expected defaults for malformed file, got %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero step size", func(c *Config) { c.World.StepSize = 0 }},
		{"short gravity", func(c *Config) { c.World.Gravity = []float64{0, -9.8} }},
		{"empty model name", func(c *Config) { c.Model.Name = "" }},
		{"zero tire diameter", func(c *Config) { c.Model.Tire.Diameter = 0 }},
		{"zero motor servos", func(c *Config) { c.Model.MotorServos = 0 }},
		{"zero lockstep steps", func(c *Config) { c.Link.LockstepSteps = 0 }},
		{"negative steer channel", func(c *Config) { c.Link.SteerChannel = -1 }},
	} {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("Expected validation error for %s", tc.name)
		}
	}
}

func writeScene(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := ioutil.WriteFile(path, []byte(content), os.FileMode(0644)); err != nil {
		t.Fatal(err)
	}
	return path
}
