package overhead

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/roversim-team/roversim/sim-bridge/pkg/fdm"
)

func TestSaveWritesDecodablePNG(t *testing.T) {
	pkt := fdm.Packet{
		Timestamp: 1.25,
		Body: fdm.Attitude{
			Position:   [3]float64{1, 0.05, -2},
			Quaternion: [4]float64{1, 0, 0, 0},
		},
		Wheels: []fdm.Wheel{
			{Attitude: fdm.Attitude{Position: [3]float64{1.1, 0.04, -1.9}}},
			{Attitude: fdm.Attitude{Position: [3]float64{0.9, 0.04, -1.9}}},
		},
	}

	path := filepath.Join(t.TempDir(), "overhead.png")
	if err := Save(pkt, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Saved file is not a valid PNG: %v", err)
	}
	if img.Bounds().Dx() != imageSize || img.Bounds().Dy() != imageSize {
		t.Fatalf("Unexpected image size: %v", img.Bounds())
	}
}

func TestYawFromQuaternion(t *testing.T) {
	// Identity quaternion: no yaw.
	if yaw := YawFromQuaternion([4]float64{1, 0, 0, 0}); math.Abs(yaw) > 1e-9 {
		t.Fatalf("Expected zero yaw for identity, got %v", yaw)
	}
	// 90 degrees about Y.
	s := math.Sqrt(0.5)
	yaw := YawFromQuaternion([4]float64{s, 0, s, 0})
	if math.Abs(yaw-math.Pi/2) > 1e-6 {
		t.Fatalf("Expected pi/2 yaw, got %v", yaw)
	}
}
