// Package cdrc は因果用量反応曲線（Causal Dose-Response Curve）を推定する
//
// 連続的な処置変数・結果変数と観測された共変量から、一般化傾向スコア
// （GPS: 共変量で条件付けた処置の条件付き密度）による交絡調整を行い、
// 処置量の関数としての周辺期待結果を推定する。
//
// 多段階のパイプライン: (1) GPSのGLM族のフィット／自動選択、
// (2) 処置グリッドの構築、(3) グリッド×観測ごとのGPS評価、
// (4) 処置とGPSを入力とする平滑化加法モデル（GAM）による結果予測、
// (5) グリッド値ごとの予測の平均化による周辺曲線と点ごとの信頼帯。
//
// 注意:
//   - カテゴリ共変量は事前にダミー変数化されている前提（Xは数値列のみ）。
//   - 「無視可能性」（強い交絡因子が全て共変量に含まれること）は
//     本パッケージでは検証できない仮定であり、満たされない場合は
//     結果に偏りが生じる。
//
// 使用例:
//
//	est, err := cdrc.New(cdrc.WithTreatmentGridNum(20))
//	if err != nil { ... }
//	model, err := est.Fit(T, X, y)
//	if err != nil { ... }
//	curve, err := model.CalculateCDRC(0.95)
package cdrc

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/causalcurve/core/parallel"
	"github.com/YuminosukeSato/causalcurve/gam"
	"github.com/YuminosukeSato/causalcurve/pkg/errors"
	"github.com/YuminosukeSato/causalcurve/pkg/log"
)

// parallelGridThreshold はグリッド方向の並列化を行う最小グリッド数
// これ以下ではgoroutineの起動コストが勝る
const parallelGridThreshold = 16

// Estimator はCDRC推定の検証済み設定を保持する
// 設定は構築時に検証され、以後変更されない。フィット結果はFitが返す
// Modelに分離されるため、Estimatorは複数のデータセットに再利用できる
type Estimator struct {
	gpsFamily        Family
	treatmentGridNum int
	splineOrder      int
	nSplines         int
	lambda           float64
	maxIter          int
	verbose          bool

	logger *slog.Logger
}

// New は検証済みのEstimatorを作成する
//
// デフォルト値: 族は自動選択、グリッド数100、スプライン次数3、
// 基底数30、平滑化ペナルティ0.5、最大反復100、verboseはfalse。
// 範囲外のパラメータはValidationErrorで即座に失敗する。
func New(opts ...Option) (*Estimator, error) {
	e := &Estimator{
		gpsFamily:        FamilyAuto,
		treatmentGridNum: 100,
		splineOrder:      3,
		nSplines:         30,
		lambda:           0.5,
		maxIter:          100,
		verbose:          false,
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.validate(); err != nil {
		return nil, err
	}

	e.logger = slog.Default().With(log.ModelNameKey, "CDRC")

	e.logProgress("CDRC estimator configured",
		log.FamilyKey, string(e.gpsFamily),
		log.GridKey, e.treatmentGridNum,
		"spline_order", e.splineOrder,
		"n_splines", e.nSplines,
		"lambda", e.lambda,
		"max_iter", e.maxIter,
	)

	return e, nil
}

// logProgress はverbose時はInfo、それ以外はDebugで進行状況を記録する
func (e *Estimator) logProgress(msg string, args ...any) {
	if e.verbose {
		e.logger.Info(msg, args...)
		return
	}
	e.logger.Debug(msg, args...)
}

// validate はコンストラクタパラメータを検証する
func (e *Estimator) validate() error {
	switch e.gpsFamily {
	case FamilyAuto, FamilyNormal, FamilyLognormal, FamilyGamma:
	default:
		return errors.NewValidationError("gps_family",
			"must be one of 'normal', 'lognormal', 'gamma', or unset", string(e.gpsFamily))
	}

	if e.treatmentGridNum < 10 {
		return errors.NewValidationError("treatment_grid_num",
			"should be >= 10 so the final curve has enough resolution", e.treatmentGridNum)
	}
	if e.treatmentGridNum >= 1000 {
		return errors.NewValidationError("treatment_grid_num", "is too high", e.treatmentGridNum)
	}

	if e.splineOrder < 1 {
		return errors.NewValidationError("spline_order", "should be >= 1", e.splineOrder)
	}
	if e.splineOrder >= 30 {
		return errors.NewValidationError("spline_order", "is too high", e.splineOrder)
	}

	if e.nSplines < 2 {
		return errors.NewValidationError("n_splines", "should be >= 2", e.nSplines)
	}
	if e.nSplines >= 100 {
		return errors.NewValidationError("n_splines", "is too high", e.nSplines)
	}

	if e.lambda <= 0 {
		return errors.NewValidationError("lambda", "should be a positive float", e.lambda)
	}
	if e.lambda >= 1000 {
		return errors.NewValidationError("lambda", "is too high", e.lambda)
	}

	if e.maxIter <= 10 {
		return errors.NewValidationError("max_iter",
			"is too low, results will not be reliable", e.maxIter)
	}
	if e.maxIter >= 1e6 {
		return errors.NewValidationError("max_iter", "is unnecessarily high", e.maxIter)
	}

	return nil
}

// validateFitData はフィット入力の形状と値を検証する
// モデルのフィットに入る前に失敗させる（副作用なし）
func validateFitData(T []float64, X mat.Matrix, y []float64) error {
	n := len(T)
	if n == 0 {
		return errors.NewModelError("CDRC.Fit", "empty treatment vector", errors.ErrEmptyData)
	}

	rows, cols := X.Dims()
	if rows != n {
		return errors.NewDimensionError("CDRC.Fit", n, rows, 0)
	}
	if cols == 0 {
		return errors.NewModelError("CDRC.Fit", "covariate matrix has no columns", errors.ErrEmptyData)
	}
	if len(y) != n {
		return errors.NewDimensionError("CDRC.Fit", n, len(y), 0)
	}

	for i, v := range T {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewNumericalInstabilityError("CDRC.Fit treatment", []float64{v}, i)
		}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewNumericalInstabilityError("CDRC.Fit outcome", []float64{v}, i)
		}
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewNumericalInstabilityError("CDRC.Fit covariates", []float64{v}, i)
			}
		}
	}

	return nil
}

// Fit は用量反応モデルをフィットし、読み取り専用のModelを返す
//
// T は処置変数、X は共変量（n行、数値列のみ、切片列が必要なら呼び出し側が
// 含める）、y は結果変数。3つの長さは一致している必要がある。
// 検証エラー時はモデルを一切作らずに失敗する。
func (e *Estimator) Fit(T []float64, X mat.Matrix, y []float64) (*Model, error) {
	if err := validateFitData(T, X, y); err != nil {
		return nil, err
	}

	n := len(T)
	_, nCov := X.Dims()

	e.logProgress("fitting dose-response model",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.CovariatesKey, nCov,
		log.GridKey, e.treatmentGridNum,
	)

	grid := treatmentGrid(T, e.treatmentGridNum)

	// GPSのフィット（族が未指定なら3族をフィットして最良を選択）
	var (
		family   Family
		gps      *GPS
		deviance float64
		err      error
	)
	if e.gpsFamily == FamilyAuto {
		e.logProgress("fitting several GPS models and picking the best fitting one",
			log.PhaseKey, "gps_selection")
		family, gps, deviance, err = selectGPS(T, X, e.maxIter)
	} else {
		family = e.gpsFamily
		e.logProgress("fitting GPS model",
			log.PhaseKey, "gps_selection",
			log.FamilyKey, string(family))
		gps, deviance, err = fitGPSFamily(family, T, X, e.maxIter)
	}
	if err != nil {
		return nil, err
	}

	e.logProgress("GPS model selected",
		log.PhaseKey, "gps_selection",
		log.FamilyKey, string(family),
		log.DevianceKey, deviance,
	)

	// 観測された処置値でのGPS
	gpsValues, err := gps.DensityAt(T)
	if err != nil {
		return nil, err
	}

	// 処置とGPSから結果を予測するGAM
	e.logProgress("fitting GAM using treatment and GPS", log.PhaseKey, "gam")

	W := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		W.Set(i, 0, T[i])
		W.Set(i, 1, gpsValues[i])
	}

	outcome := gam.NewLinearGAM(e.nSplines, e.splineOrder, e.lambda)
	if err := outcome.Fit(W, y); err != nil {
		return nil, err
	}

	summary, err := outcome.Summary()
	if err != nil {
		return nil, err
	}

	e.logProgress("GAM fitted",
		log.PhaseKey, "gam",
		log.EDoFKey, summary.EDoF,
	)

	// グリッド値ごとの全観測のGPS（n × treatment_grid_num）
	// 列ごとに独立なのでグリッド方向に並列化する
	gpsAtGrid := mat.NewDense(n, e.treatmentGridNum, nil)
	parallel.ParallelizeWithThreshold(e.treatmentGridNum, parallelGridThreshold, func(start, end int) {
		for j := start; j < end; j++ {
			col := gps.Density(grid[j])
			for i := 0; i < n; i++ {
				gpsAtGrid.Set(i, j, col[i])
			}
		}
	})

	return &Model{
		nObs:             n,
		treatmentGridNum: e.treatmentGridNum,
		grid:             grid,
		bestFamily:       family,
		gpsDeviance:      deviance,
		gps:              gps,
		gpsValues:        gpsValues,
		gpsAtGrid:        gpsAtGrid,
		outcome:          outcome,
		gamSummary:       summary,
		summaryText:      summary.String(),
		logger:           e.logger,
		verbose:          e.verbose,
	}, nil
}
