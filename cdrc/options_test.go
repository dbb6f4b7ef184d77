package cdrc

import (
	"testing"

	"github.com/YuminosukeSato/causalcurve/pkg/errors"
)

func TestNew_Defaults(t *testing.T) {
	est, err := New()
	if err != nil {
		t.Fatalf("Failed to construct estimator with defaults: %v", err)
	}

	if est.gpsFamily != FamilyAuto {
		t.Errorf("Expected auto family selection by default, got %q", est.gpsFamily)
	}
	if est.treatmentGridNum != 100 {
		t.Errorf("Expected default grid num 100, got %d", est.treatmentGridNum)
	}
	if est.splineOrder != 3 || est.nSplines != 30 {
		t.Errorf("Expected default splines 30/order 3, got %d/%d", est.nSplines, est.splineOrder)
	}
	if est.lambda != 0.5 {
		t.Errorf("Expected default lambda 0.5, got %f", est.lambda)
	}
	if est.maxIter != 100 {
		t.Errorf("Expected default max_iter 100, got %d", est.maxIter)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		param string
	}{
		{"unknown family", WithGPSFamily("poisson"), "gps_family"},
		{"grid too low", WithTreatmentGridNum(9), "treatment_grid_num"},
		{"grid too high", WithTreatmentGridNum(1000), "treatment_grid_num"},
		{"order too low", WithSplineOrder(0), "spline_order"},
		{"order too high", WithSplineOrder(30), "spline_order"},
		{"splines too low", WithNSplines(1), "n_splines"},
		{"splines too high", WithNSplines(100), "n_splines"},
		{"lambda zero", WithLambda(0), "lambda"},
		{"lambda negative", WithLambda(-1), "lambda"},
		{"lambda too high", WithLambda(1000), "lambda"},
		{"max_iter too low", WithMaxIter(10), "max_iter"},
		{"max_iter too high", WithMaxIter(1000000), "max_iter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := New(tt.opt)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if est != nil {
				t.Error("Expected no estimator to be constructed on validation failure")
			}

			var ve *errors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %T: %v", err, err)
			}
			if ve.ParamName != tt.param {
				t.Errorf("Expected parameter %q in error, got %q", tt.param, ve.ParamName)
			}
		})
	}
}

func TestNew_ExplicitFamilies(t *testing.T) {
	for _, f := range []Family{FamilyNormal, FamilyLognormal, FamilyGamma} {
		est, err := New(WithGPSFamily(f))
		if err != nil {
			t.Errorf("Family %q: unexpected error: %v", f, err)
			continue
		}
		if est.gpsFamily != f {
			t.Errorf("Expected family %q, got %q", f, est.gpsFamily)
		}
	}
}
