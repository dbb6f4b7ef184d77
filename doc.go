// Package causalcurve provides tools for estimating the causal impact of a
// continuous treatment on an outcome, in the presence of observed confounders.
//
// The core workflow mirrors the familiar fit/predict pattern: configure an
// estimator, fit it against observational data, and query the resulting model
// for the causal dose-response curve (CDRC) with pointwise confidence bands.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/causalcurve/cdrc"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    // T: treatment, X: confounders (numeric, pre-encoded), y: outcome
//	    est, err := cdrc.New(cdrc.WithTreatmentGridNum(20))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    model, err := est.Fit(T, X, y)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    curve, err := model.CalculateCDRC(0.95)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Print(curve)
//	}
//
// # Packages
//
//   - cdrc: the dose-response estimator (GPS fitting, family selection,
//     treatment grid, curve calculation, plotting)
//   - glm: generalized linear models fitted by IRLS (gaussian and gamma
//     families), used for the generalized propensity score
//   - gam: penalized B-spline additive models, used for the outcome model
//   - metrics: evaluation metrics (MSE, R²)
//   - core/model: shared estimator state handling
//   - pkg/errors, pkg/log: error types, warnings, and structured logging
//
// # License
//
// causalcurve is released under the MIT License.
package causalcurve
