package export

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTracePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.png")
	series := []Series{
		{Name: "x", Times: []float64{0, 1, 2}, Values: []float64{0, 1, 4}},
		{Name: "y", Times: []float64{0, 1, 2}, Values: []float64{1, 0, -1}},
	}

	if err := TracePNG(path, "coordinates", series); err != nil {
		t.Fatalf("TracePNG: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("output file: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
}

func TestTracePNGEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.png")
	if err := TracePNG(path, "empty", nil); err == nil {
		t.Error("expected error for empty series")
	}
}

func TestTracePNGLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.png")
	series := []Series{{Name: "x", Times: []float64{0, 1}, Values: []float64{0}}}
	if err := TracePNG(path, "bad", series); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestPhasePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phase.png")
	xs := []float64{0, 1, 0, -1, 0}
	ys := []float64{1, 0, -1, 0, 1}

	if err := PhasePNG(path, "orbit", "x", "vx", xs, ys); err != nil {
		t.Fatalf("PhasePNG: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("bad output file: %v", err)
	}
}
