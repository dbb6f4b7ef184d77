// Standard attribute keys for estimation operations. Using these keys keeps
// fit progress logs consistent across the GPS, GAM, and CDRC stages so they
// can be filtered and analyzed downstream.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator emitting the log record.
	// Examples: "CDRC", "GLM", "LinearGAM"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "calculate_cdrc"
	OperationKey = "ml.operation"

	// PhaseKey indicates the stage inside a fit.
	// Examples: "gps_selection", "gps_values", "gam", "gps_at_grid"
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey indicates the number of observations.
	SamplesKey = "data.samples"

	// CovariatesKey indicates the number of covariate columns in X.
	CovariatesKey = "data.covariates"

	// GridKey indicates the treatment grid size.
	GridKey = "data.treatment_grid_num"
)

// Estimation results.
const (
	// FamilyKey records the GPS family in use.
	FamilyKey = "gps.family"

	// DevianceKey records a GLM deviance.
	DevianceKey = "gps.deviance"

	// EDoFKey records the effective degrees of freedom of the outcome GAM.
	EDoFKey = "gam.edof"

	// IterationKey records solver iteration counts.
	IterationKey = "training.iteration"

	// CIKey records the requested confidence interval width.
	CIKey = "cdrc.ci"
)

// Standard operation values.
const (
	OperationFit           = "fit"
	OperationPredict       = "predict"
	OperationCalculateCDRC = "calculate_cdrc"
)
