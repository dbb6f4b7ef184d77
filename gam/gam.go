// Package gam はペナルティ付きBスプラインによる加法モデル（GAM）を提供する
//
// pygamのLinearGAMに相当する機能に絞っている: 各入力に独立な平滑化項を持つ
// 線形加法モデル、点予測、予測区間、構造化されたフィット要約。
// 平滑化はP-spline方式（一様ノットのBスプライン基底 + 係数の2階差分ペナルティ）。
package gam

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/causalcurve/core/model"
	"github.com/YuminosukeSato/causalcurve/metrics"
	"github.com/YuminosukeSato/causalcurve/pkg/errors"
)

const (
	// solverMaxIter はPIRLSソルバー自身の反復上限
	// 推定器側のmax_iterとは独立した固定値
	solverMaxIter = 500

	solverTol = 1e-8

	// identRidge は各平滑化項の定数方向（切片と交絡する）を
	// 一意化するための微小リッジ
	identRidge = 1e-6
)

// LinearGAM はガウス誤差の加法モデル y = β₀ + Σ fⱼ(xⱼ) + ε
type LinearGAM struct {
	model.BaseEstimator

	nSplines    int
	splineOrder int
	lam         float64

	nTerms int
	nObs   int
	bases  []*bsplineBasis
	coeff  []float64
	cov    *mat.SymDense // 係数の事後共分散 σ²(BᵀB+P)⁻¹
	scale  float64       // 分散推定値 σ²
	edof   float64
	summry *Summary
}

// NewLinearGAM は加法モデルのフィッターを作成する
// nSplinesは項ごとの基底数、splineOrderはスプライン次数、lamは平滑化ペナルティ
func NewLinearGAM(nSplines, splineOrder int, lam float64) *LinearGAM {
	return &LinearGAM{
		nSplines:    nSplines,
		splineOrder: splineOrder,
		lam:         lam,
	}
}

// Fit は加法モデルをペナルティ付き最小二乗でフィットする
// Xの各列が1つの平滑化項になる
func (g *LinearGAM) Fit(X mat.Matrix, y []float64) error {
	n, d := X.Dims()

	if n == 0 || d == 0 {
		return errors.NewModelError("LinearGAM.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return errors.NewDimensionError("LinearGAM.Fit", n, len(y), 0)
	}

	// 項ごとの基底を列の範囲から構築する
	bases := make([]*bsplineBasis, d)
	for j := 0; j < d; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < n; i++ {
			v := X.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		b, err := newBSplineBasis(lo, hi, g.nSplines, g.splineOrder)
		if err != nil {
			return err
		}
		bases[j] = b
	}

	m := g.nSplines
	p := 1 + d*m

	// 計画行列 B = [1, B₁(x₁), ..., B_d(x_d)]
	B := mat.NewDense(n, p, nil)
	buf := make([]float64, m)
	for i := 0; i < n; i++ {
		B.Set(i, 0, 1)
		for j := 0; j < d; j++ {
			bases[j].eval(X.At(i, j), buf)
			for k := 0; k < m; k++ {
				B.Set(i, 1+j*m+k, buf[k])
			}
		}
	}

	// ペナルティ行列 P: 項ごとに λ·D₂ᵀD₂ + 微小リッジ（切片は無ペナルティ）
	P := mat.NewSymDense(p, nil)
	for j := 0; j < d; j++ {
		off := 1 + j*m
		for r := 0; r < m-2; r++ {
			// D₂の行 (1, -2, 1)
			idx := [3]int{off + r, off + r + 1, off + r + 2}
			w := [3]float64{1, -2, 1}
			for a := 0; a < 3; a++ {
				for b := a; b < 3; b++ {
					P.SetSym(idx[a], idx[b], P.At(idx[a], idx[b])+g.lam*w[a]*w[b])
				}
			}
		}
		for k := 0; k < m; k++ {
			P.SetSym(off+k, off+k, P.At(off+k, off+k)+identRidge)
		}
	}

	// BᵀB と Bᵀy
	var btbDense mat.Dense
	btbDense.Mul(B.T(), B)
	btb := mat.NewSymDense(p, nil)
	for j := 0; j < p; j++ {
		for k := j; k < p; k++ {
			btb.SetSym(j, k, btbDense.At(j, k))
		}
	}

	yVec := mat.NewVecDense(n, y)
	bty := mat.NewVecDense(p, nil)
	bty.MulVec(B.T(), yVec)

	// A = BᵀB + P
	A := mat.NewSymDense(p, nil)
	A.AddSym(btb, P)

	var chol mat.Cholesky
	if ok := chol.Factorize(A); !ok {
		return errors.NewModelError("LinearGAM.Fit", "singular penalized normal equations", errors.ErrSingularMatrix)
	}

	// PIRLS: ガウス誤差・恒等リンクでは1回の解で収束するが、
	// ソルバーの反復上限はモデル設定とは独立に固定している
	coefVec := mat.NewVecDense(p, nil)
	fitted := make([]float64, n)
	dev := math.Inf(1)
	converged := false
	iter := 0

	for iter = 1; iter <= solverMaxIter; iter++ {
		if err := chol.SolveVecTo(coefVec, bty); err != nil {
			return errors.NewModelError("LinearGAM.Fit", "penalized least squares solve failed", err)
		}

		var fv mat.VecDense
		fv.MulVec(B, coefVec)
		var rss float64
		for i := 0; i < n; i++ {
			fitted[i] = fv.AtVec(i)
			r := y[i] - fitted[i]
			rss += r * r
		}

		if math.Abs(rss-dev) < solverTol*(math.Abs(rss)+0.1) {
			dev = rss
			converged = true
			break
		}
		dev = rss
	}

	if !converged {
		iter = solverMaxIter
		errors.Warn(errors.NewConvergenceWarning("GAM-PIRLS", solverMaxIter, ""))
	}

	// 有効自由度 edof = tr((BᵀB+P)⁻¹BᵀB)
	ainv := mat.NewSymDense(p, nil)
	if err := chol.InverseTo(ainv); err != nil {
		return errors.NewModelError("LinearGAM.Fit", "covariance inversion failed", err)
	}

	edofCoeff := make([]float64, p)
	for j := 0; j < p; j++ {
		var s float64
		for k := 0; k < p; k++ {
			s += ainv.At(j, k) * btb.At(k, j)
		}
		edofCoeff[j] = s
	}
	var edof float64
	for _, v := range edofCoeff {
		edof += v
	}

	denom := float64(n) - edof
	if denom < 1 {
		denom = 1
	}
	scale := dev / denom

	cov := mat.NewSymDense(p, nil)
	for j := 0; j < p; j++ {
		for k := j; k < p; k++ {
			cov.SetSym(j, k, scale*ainv.At(j, k))
		}
	}

	coeff := make([]float64, p)
	copy(coeff, coefVec.RawVector().Data)

	g.nTerms = d
	g.nObs = n
	g.bases = bases
	g.coeff = coeff
	g.cov = cov
	g.scale = scale
	g.edof = edof
	g.SetFitted()

	r2, err := metrics.R2(y, fitted)
	if err != nil {
		r2 = math.NaN()
	}
	g.summry = g.buildSummary(edofCoeff, r2, converged, iter)

	return nil
}

// designRow は問い合わせ点の基底行ベクトルを構築する
func (g *LinearGAM) designRow(x []float64, row []float64) {
	m := g.nSplines
	row[0] = 1
	buf := make([]float64, m)
	for j := 0; j < g.nTerms; j++ {
		g.bases[j].eval(x[j], buf)
		copy(row[1+j*m:1+(j+1)*m], buf)
	}
}

// Predict は各問い合わせ点の点予測を返す
func (g *LinearGAM) Predict(X mat.Matrix) ([]float64, error) {
	if !g.IsFitted() {
		return nil, errors.NewNotFittedError("LinearGAM", "Predict")
	}

	n, d := X.Dims()
	if d != g.nTerms {
		return nil, errors.NewDimensionError("LinearGAM.Predict", g.nTerms, d, 1)
	}

	p := len(g.coeff)
	row := make([]float64, p)
	x := make([]float64, d)
	preds := make([]float64, n)

	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			x[j] = X.At(i, j)
		}
		g.designRow(x, row)
		var s float64
		for k := 0; k < p; k++ {
			s += row[k] * g.coeff[k]
		}
		preds[i] = s
	}

	return preds, nil
}

// PredictionIntervals は幅widthの予測区間の[下限, 上限]をn×2行列で返す
// 区間は正規理論に基づく: ŷ ± z·√(σ² + bᵀVb)
func (g *LinearGAM) PredictionIntervals(X mat.Matrix, width float64) (*mat.Dense, error) {
	if !g.IsFitted() {
		return nil, errors.NewNotFittedError("LinearGAM", "PredictionIntervals")
	}
	if width <= 0 || width >= 1 {
		return nil, errors.NewValueError("LinearGAM.PredictionIntervals",
			"interval width must be in the open interval (0, 1)")
	}

	n, d := X.Dims()
	if d != g.nTerms {
		return nil, errors.NewDimensionError("LinearGAM.PredictionIntervals", g.nTerms, d, 1)
	}

	z := distuv.UnitNormal.Quantile(0.5 + width/2)

	p := len(g.coeff)
	row := make([]float64, p)
	x := make([]float64, d)
	out := mat.NewDense(n, 2, nil)

	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			x[j] = X.At(i, j)
		}
		g.designRow(x, row)

		var pred float64
		for k := 0; k < p; k++ {
			pred += row[k] * g.coeff[k]
		}

		// bᵀVb
		var quad float64
		for a := 0; a < p; a++ {
			if row[a] == 0 {
				continue
			}
			for b := 0; b < p; b++ {
				quad += row[a] * g.cov.At(a, b) * row[b]
			}
		}

		se := math.Sqrt(g.scale + quad)
		out.Set(i, 0, pred-z*se)
		out.Set(i, 1, pred+z*se)
	}

	return out, nil
}

// Scale は分散推定値σ²を返す
func (g *LinearGAM) Scale() float64 { return g.scale }

// EDoF はモデル全体の有効自由度を返す
func (g *LinearGAM) EDoF() float64 { return g.edof }

// Coeff はフィット済み係数を返す
func (g *LinearGAM) Coeff() []float64 { return g.coeff }
