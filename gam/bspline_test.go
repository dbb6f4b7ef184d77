package gam

import (
	"math"
	"testing"
)

func TestBSplineBasis_PartitionOfUnity(t *testing.T) {
	b, err := newBSplineBasis(0, 10, 8, 3)
	if err != nil {
		t.Fatalf("Failed to build basis: %v", err)
	}

	out := make([]float64, 8)
	for _, x := range []float64{0, 0.3, 2.5, 5, 7.77, 9.999, 10} {
		b.eval(x, out)
		var sum float64
		for _, v := range out {
			if v < 0 {
				t.Errorf("x=%f: negative basis value %f", x, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-10 {
			t.Errorf("x=%f: basis values sum to %f, want 1", x, sum)
		}
	}
}

func TestBSplineBasis_ClampsOutOfRange(t *testing.T) {
	b, err := newBSplineBasis(0, 10, 8, 3)
	if err != nil {
		t.Fatalf("Failed to build basis: %v", err)
	}

	atLo := make([]float64, 8)
	atHi := make([]float64, 8)
	below := make([]float64, 8)
	above := make([]float64, 8)
	b.eval(0, atLo)
	b.eval(10, atHi)
	b.eval(-5, below)
	b.eval(15, above)

	for k := 0; k < 8; k++ {
		if below[k] != atLo[k] {
			t.Errorf("Basis %d: below-range value %f, want endpoint value %f", k, below[k], atLo[k])
		}
		if above[k] != atHi[k] {
			t.Errorf("Basis %d: above-range value %f, want endpoint value %f", k, above[k], atHi[k])
		}
	}
}

func TestBSplineBasis_TooFewSplines(t *testing.T) {
	if _, err := newBSplineBasis(0, 1, 3, 3); err == nil {
		t.Error("Expected error when the basis count does not exceed the degree")
	}
}
