package cdrc

import (
	"math"
	"testing"
)

func TestTreatmentGrid_LinspaceData(t *testing.T) {
	// On evenly spaced data with a compatible grid size the quantiles are
	// hit exactly by the linear interpolation.
	T := make([]float64, 101)
	for i := range T {
		T[i] = float64(i)
	}

	grid := treatmentGrid(T, 11)
	if len(grid) != 11 {
		t.Fatalf("Expected 11 grid values, got %d", len(grid))
	}
	for j, want := range []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100} {
		if math.Abs(grid[j]-want) > 1e-12 {
			t.Errorf("Grid value %d: expected %f, got %f", j, want, grid[j])
		}
	}
}

func TestTreatmentGrid_Endpoints(t *testing.T) {
	T := []float64{4.2, -1.5, 9.9, 0.3, 7.7, 2.1, 5.5, 3.3, 8.8, 6.6, 1.1, 0.0}

	grid := treatmentGrid(T, 10)
	if grid[0] != -1.5 {
		t.Errorf("Expected first grid value to be the minimum -1.5, got %f", grid[0])
	}
	if grid[len(grid)-1] != 9.9 {
		t.Errorf("Expected last grid value to be the maximum 9.9, got %f", grid[len(grid)-1])
	}
}

func TestTreatmentGrid_NonDecreasing(t *testing.T) {
	T := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9}

	grid := treatmentGrid(T, 12)
	for j := 1; j < len(grid); j++ {
		if grid[j] < grid[j-1] {
			t.Errorf("Grid decreases at %d: %f -> %f", j, grid[j-1], grid[j])
		}
	}
}

func TestTreatmentGrid_DoesNotMutateInput(t *testing.T) {
	T := []float64{5, 3, 1, 4, 2, 9, 8, 7, 6, 0}
	orig := append([]float64(nil), T...)

	treatmentGrid(T, 10)
	for i := range T {
		if T[i] != orig[i] {
			t.Fatalf("Input slice was mutated at %d: %f -> %f", i, orig[i], T[i])
		}
	}
}
