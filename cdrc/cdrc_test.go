package cdrc

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/causalcurve/pkg/errors"
)

// simulatedData is a confounded continuous-treatment scenario: the covariate
// x drives both the (lognormally distributed) treatment and the outcome.
type simulatedData struct {
	T []float64
	X *mat.Dense
	y []float64
}

func simulateLognormalTreatment(n int, seed uint64) simulatedData {
	rng := rand.NewSource(seed)
	stdNorm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	T := make([]float64, n)
	y := make([]float64, n)
	X := mat.NewDense(n, 2, nil)

	for i := 0; i < n; i++ {
		x := stdNorm.Rand()
		logT := 1 + 0.8*x + 0.6*stdNorm.Rand()
		T[i] = math.Exp(logT)
		X.Set(i, 0, 1)
		X.Set(i, 1, x)
		y[i] = 3 + 1.5*logT + 0.3*stdNorm.Rand()
	}

	return simulatedData{T: T, X: X, y: y}
}

func TestEstimator_FitEndToEnd(t *testing.T) {
	errors.SetWarningHandler(func(w error) {})
	defer errors.SetWarningHandler(func(w error) {})

	data := simulateLognormalTreatment(400, 42)

	est, err := New(WithTreatmentGridNum(20), WithNSplines(15))
	if err != nil {
		t.Fatalf("Failed to construct estimator: %v", err)
	}

	model, err := est.Fit(data.T, data.X, data.y)
	if err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if model.NumObs() != 400 {
		t.Errorf("Expected 400 observations, got %d", model.NumObs())
	}
	// The treatment is lognormal given x, so family selection should
	// settle on the lognormal GPS.
	if model.BestGPSFamily() != FamilyLognormal {
		t.Errorf("Expected lognormal GPS family, got %q", model.BestGPSFamily())
	}
	if math.IsNaN(model.GPSDeviance()) || math.IsInf(model.GPSDeviance(), 0) {
		t.Errorf("Expected finite GPS deviance, got %f", model.GPSDeviance())
	}

	grid := model.GridValues()
	want := treatmentGrid(data.T, 20)
	if len(grid) != 20 {
		t.Fatalf("Expected 20 grid values, got %d", len(grid))
	}
	if !floats.Equal(grid, want) {
		t.Errorf("Grid values differ from the empirical treatment quantiles:\ngot  %v\nwant %v", grid, want)
	}

	gpsValues := model.GPSValues()
	if len(gpsValues) != 400 {
		t.Fatalf("Expected 400 GPS values, got %d", len(gpsValues))
	}
	for i, v := range gpsValues {
		if v < 0 || math.IsNaN(v) {
			t.Errorf("GPS value %d: expected non-negative density, got %f", i, v)
		}
	}

	summary := model.GAMSummary()
	if summary == nil {
		t.Fatal("Expected a GAM summary")
	}
	if summary.NSamples != 400 {
		t.Errorf("Expected GAM summary over 400 samples, got %d", summary.NSamples)
	}
	// Two smooth terms (treatment, GPS) plus the intercept.
	if len(summary.Terms) != 3 {
		t.Errorf("Expected 3 GAM terms, got %d", len(summary.Terms))
	}
}

func TestModel_CalculateCDRC(t *testing.T) {
	errors.SetWarningHandler(func(w error) {})
	defer errors.SetWarningHandler(func(w error) {})

	data := simulateLognormalTreatment(400, 7)

	est, err := New(WithTreatmentGridNum(20), WithNSplines(15))
	if err != nil {
		t.Fatalf("Failed to construct estimator: %v", err)
	}
	model, err := est.Fit(data.T, data.X, data.y)
	if err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	curve, err := model.CalculateCDRC(0.95)
	if err != nil {
		t.Fatalf("Failed to calculate CDRC: %v", err)
	}

	if curve.Len() != 20 {
		t.Fatalf("Expected 20 curve rows, got %d", curve.Len())
	}
	for j := 0; j < curve.Len(); j++ {
		if !(curve.LowerCI[j] <= curve.CDRC[j] && curve.CDRC[j] <= curve.UpperCI[j]) {
			t.Errorf("Row %d: band [%f, %f] does not bracket estimate %f",
				j, curve.LowerCI[j], curve.UpperCI[j], curve.CDRC[j])
		}
	}

	// The outcome increases with log treatment, so the curve should rise
	// from the low end of the grid to the high end.
	if curve.CDRC[curve.Len()-1] <= curve.CDRC[0] {
		t.Errorf("Expected an increasing dose-response curve, got %f -> %f",
			curve.CDRC[0], curve.CDRC[curve.Len()-1])
	}

	// Estimates are reported rounded to 3 decimal places.
	for j, v := range curve.CDRC {
		if math.Abs(v*1000-math.Round(v*1000)) > 1e-9 {
			t.Errorf("Row %d: estimate %f is not rounded to 3 decimals", j, v)
		}
	}

	// Repeated calculation on the same model must be identical.
	again, err := model.CalculateCDRC(0.95)
	if err != nil {
		t.Fatalf("Failed to recalculate CDRC: %v", err)
	}
	for j := 0; j < curve.Len(); j++ {
		if curve.CDRC[j] != again.CDRC[j] || curve.LowerCI[j] != again.LowerCI[j] || curve.UpperCI[j] != again.UpperCI[j] {
			t.Fatalf("Row %d: repeated calculation differs", j)
		}
	}

	// A wider confidence level widens (or keeps) the band.
	wide, err := model.CalculateCDRC(0.99)
	if err != nil {
		t.Fatalf("Failed to calculate 0.99 CDRC: %v", err)
	}
	for j := 0; j < curve.Len(); j++ {
		if wide.LowerCI[j] > curve.LowerCI[j] || wide.UpperCI[j] < curve.UpperCI[j] {
			t.Errorf("Row %d: 0.99 band does not contain 0.95 band", j)
		}
	}
}

func TestModel_CalculateCDRCValidation(t *testing.T) {
	errors.SetWarningHandler(func(w error) {})
	defer errors.SetWarningHandler(func(w error) {})

	data := simulateLognormalTreatment(200, 3)

	est, err := New(WithTreatmentGridNum(10), WithNSplines(10))
	if err != nil {
		t.Fatalf("Failed to construct estimator: %v", err)
	}
	model, err := est.Fit(data.T, data.X, data.y)
	if err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	for _, ci := range []float64{0, 1, -0.1, 1.5, math.NaN()} {
		_, err := model.CalculateCDRC(ci)
		if err == nil {
			t.Errorf("Expected error for ci=%f", ci)
			continue
		}
		var ve *errors.ValueError
		if !errors.As(err, &ve) {
			t.Errorf("ci=%f: expected ValueError, got %T: %v", ci, err, err)
		}
	}
}

func TestEstimator_ExplicitFamily(t *testing.T) {
	errors.SetWarningHandler(func(w error) {})
	defer errors.SetWarningHandler(func(w error) {})

	// A gamma-distributed treatment whose inverse mean is linear in the
	// covariate, so the gamma GPS model is well specified.
	rng := rand.NewSource(11)
	uni := distuv.Uniform{Min: 0, Max: 1, Src: rng}
	stdNorm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	n := 300
	T := make([]float64, n)
	y := make([]float64, n)
	X := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		x := uni.Rand()
		mu := 1 / (0.5 + 0.2*x)
		T[i] = distuv.Gamma{Alpha: 2, Beta: 2 / mu, Src: rng}.Rand()
		X.Set(i, 0, 1)
		X.Set(i, 1, x)
		y[i] = 1 + 0.5*T[i] + 0.2*stdNorm.Rand()
	}

	est, err := New(WithGPSFamily(FamilyGamma), WithTreatmentGridNum(10), WithNSplines(10))
	if err != nil {
		t.Fatalf("Failed to construct estimator: %v", err)
	}
	model, err := est.Fit(T, X, y)
	if err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	// No family selection: the requested family is used as is.
	if model.BestGPSFamily() != FamilyGamma {
		t.Errorf("Expected gamma family, got %q", model.BestGPSFamily())
	}
}

func TestValidateFitData(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 1, 1})

	if err := validateFitData(nil, X, nil); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("Expected ErrEmptyData for empty treatment, got %v", err)
	}

	var dimErr *errors.DimensionError
	err := validateFitData([]float64{1, 2, 3}, X, []float64{1, 2})
	if !errors.As(err, &dimErr) {
		t.Errorf("Expected DimensionError for short outcome, got %v", err)
	}

	var numErr *errors.NumericalInstabilityError
	err = validateFitData([]float64{1, math.NaN(), 3}, X, []float64{1, 2, 3})
	if !errors.As(err, &numErr) {
		t.Errorf("Expected NumericalInstabilityError for NaN treatment, got %v", err)
	}

	err = validateFitData([]float64{1, 2, 3}, X, []float64{1, math.Inf(1), 3})
	if !errors.As(err, &numErr) {
		t.Errorf("Expected NumericalInstabilityError for Inf outcome, got %v", err)
	}
}

func TestModel_PrintGAMSummary(t *testing.T) {
	errors.SetWarningHandler(func(w error) {})
	defer errors.SetWarningHandler(func(w error) {})

	data := simulateLognormalTreatment(200, 5)

	est, err := New(WithTreatmentGridNum(10), WithNSplines(10))
	if err != nil {
		t.Fatalf("Failed to construct estimator: %v", err)
	}
	model, err := est.Fit(data.T, data.X, data.y)
	if err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	var buf bytes.Buffer
	if err := model.PrintGAMSummary(&buf); err != nil {
		t.Fatalf("Failed to print summary: %v", err)
	}
	text := buf.String()
	if !strings.Contains(text, "LinearGAM") {
		t.Errorf("Expected summary header in output, got:\n%s", text)
	}
	if !strings.Contains(text, "s(0)") || !strings.Contains(text, "intercept") {
		t.Errorf("Expected term rows in output, got:\n%s", text)
	}
}

func TestCurve_String(t *testing.T) {
	c := &Curve{
		Treatment: []float64{1, 2},
		CDRC:      []float64{3.5, 4.5},
		LowerCI:   []float64{3.0, 4.0},
		UpperCI:   []float64{4.0, 5.0},
	}

	s := c.String()
	if !strings.Contains(s, "Treatment") || !strings.Contains(s, "Upper_CI") {
		t.Errorf("Expected header columns, got:\n%s", s)
	}
	if len(strings.Split(strings.TrimRight(s, "\n"), "\n")) != 3 {
		t.Errorf("Expected header plus 2 rows, got:\n%s", s)
	}
}

func TestPlotCurve(t *testing.T) {
	errors.SetWarningHandler(func(w error) {})
	defer errors.SetWarningHandler(func(w error) {})

	data := simulateLognormalTreatment(200, 9)

	est, err := New(WithTreatmentGridNum(10), WithNSplines(10))
	if err != nil {
		t.Fatalf("Failed to construct estimator: %v", err)
	}
	model, err := est.Fit(data.T, data.X, data.y)
	if err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	curve, err := model.CalculateCDRC(0.95)
	if err != nil {
		t.Fatalf("Failed to calculate CDRC: %v", err)
	}

	path := filepath.Join(t.TempDir(), "curve.png")
	if err := PlotCurve(curve, path); err != nil {
		t.Fatalf("Failed to plot curve: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Expected plot file to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Expected non-empty plot file")
	}

	if err := PlotCurve(nil, path); err == nil {
		t.Error("Expected error for nil curve")
	}
}
