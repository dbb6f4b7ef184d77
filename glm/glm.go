// Package glm は一般化線形モデル（GLM）のIRLSフィッターを提供する
//
// GPS（一般化傾向スコア）の推定に必要な範囲に絞っており、
// 正規族（恒等リンク）とガンマ族（逆数リンク）をサポートする。
// 計画行列はそのまま使用する（切片列は呼び出し側が用意する）。
package glm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/causalcurve/core/model"
	"github.com/YuminosukeSato/causalcurve/pkg/errors"
)

const defaultTol = 1e-8

// GLM は一般化線形モデルのフィッター
type GLM struct {
	model.BaseEstimator

	fam     *Family
	maxIter int
	tol     float64
}

// Option はGLMの設定オプション
type Option func(*GLM)

// WithMaxIter はIRLSの最大反復回数を設定する
func WithMaxIter(n int) Option {
	return func(g *GLM) {
		g.maxIter = n
	}
}

// WithTol はIRLSの収束判定の許容誤差を設定する
func WithTol(tol float64) Option {
	return func(g *GLM) {
		g.tol = tol
	}
}

// NewGLM は指定した分布族のGLMフィッターを作成する
func NewGLM(fam *Family, opts ...Option) *GLM {
	g := &GLM{
		fam:     fam,
		maxIter: 100,
		tol:     defaultTol,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Results はフィット済みGLMの結果
// 一度作成されたら読み取り専用
type Results struct {
	coeff     []float64
	fitted    []float64
	resid     []float64
	deviance  float64
	scale     float64
	iter      int
	converged bool
}

// Coeff は回帰係数を返す
func (r *Results) Coeff() []float64 { return r.coeff }

// FittedValues は各観測の条件付き平均 μ̂ を返す
func (r *Results) FittedValues() []float64 { return r.fitted }

// Resid は応答残差 y - μ̂ を返す
func (r *Results) Resid() []float64 { return r.resid }

// Deviance はモデルの逸脱度を返す（小さいほど適合が良い）
func (r *Results) Deviance() float64 { return r.deviance }

// Scale はPearson χ²/(n-p) によるスケール（分散）推定値を返す
func (r *Results) Scale() float64 { return r.scale }

// Iterations は実行されたIRLS反復回数を返す
func (r *Results) Iterations() int { return r.iter }

// Converged はIRLSが収束したかどうかを返す
func (r *Results) Converged() bool { return r.converged }

// Fit はIRLS（反復再重み付け最小二乗法）でGLMをフィットする
//
// 各反復で作業応答 z_i = η_i + (y_i-μ_i)g'(μ_i) と
// 重み w_i = 1/(V(μ_i)g'(μ_i)²) による重み付き最小二乗を解く。
// 非収束はConvergenceWarningを発して最後の反復の結果を返す。
// 正規方程式が特異な場合はエラー。
func (g *GLM) Fit(y []float64, X mat.Matrix) (*Results, error) {
	n, p := X.Dims()

	if n == 0 || p == 0 {
		return nil, errors.NewModelError("GLM.Fit", "empty design matrix", errors.ErrEmptyData)
	}
	if len(y) != n {
		return nil, errors.NewDimensionError("GLM.Fit", n, len(y), 0)
	}

	mu := g.fam.StartingMu(y)
	eta := make([]float64, n)
	g.fam.Link(mu, eta)
	dev := g.fam.Deviance(y, mu)

	w := make([]float64, n)
	z := make([]float64, n)
	coeff := make([]float64, p)

	xtwx := mat.NewSymDense(p, nil)
	xtwz := mat.NewVecDense(p, nil)
	betaVec := mat.NewVecDense(p, nil)

	var chol mat.Cholesky
	converged := false
	iter := 0

	for iter = 1; iter <= g.maxIter; iter++ {
		for i := 0; i < n; i++ {
			d := g.fam.LinkDeriv(mu[i])
			w[i] = 1 / (g.fam.Variance(mu[i]) * d * d)
			z[i] = eta[i] + (y[i]-mu[i])*d
		}

		// 正規方程式 XᵀWX β = XᵀWz を組み立てる
		for j := 0; j < p; j++ {
			for k := j; k < p; k++ {
				var s float64
				for i := 0; i < n; i++ {
					s += w[i] * X.At(i, j) * X.At(i, k)
				}
				xtwx.SetSym(j, k, s)
			}
			var s float64
			for i := 0; i < n; i++ {
				s += w[i] * X.At(i, j) * z[i]
			}
			xtwz.SetVec(j, s)
		}

		if ok := chol.Factorize(xtwx); !ok {
			return nil, errors.NewModelError("GLM.Fit", "singular weighted normal equations", errors.ErrSingularMatrix)
		}
		if err := chol.SolveVecTo(betaVec, xtwz); err != nil {
			return nil, errors.NewModelError("GLM.Fit", "weighted least squares solve failed", err)
		}

		for j := 0; j < p; j++ {
			coeff[j] = betaVec.AtVec(j)
		}

		// 線形予測子と平均を更新
		for i := 0; i < n; i++ {
			var e float64
			for j := 0; j < p; j++ {
				e += X.At(i, j) * coeff[j]
			}
			eta[i] = e
		}
		g.fam.InvLink(eta, mu)

		devNew := g.fam.Deviance(y, mu)
		if math.Abs(devNew-dev) < g.tol*(math.Abs(devNew)+0.1) {
			dev = devNew
			converged = true
			break
		}
		dev = devNew
	}

	if !converged {
		iter = g.maxIter
		errors.Warn(errors.NewConvergenceWarning("GLM-IRLS", g.maxIter, g.fam.Name))
	}

	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		resid[i] = y[i] - mu[i]
	}

	g.SetFitted()

	return &Results{
		coeff:     coeff,
		fitted:    mu,
		resid:     resid,
		deviance:  dev,
		scale:     g.estimateScale(y, mu, p),
		iter:      iter,
		converged: converged,
	}, nil
}

// estimateScale はPearson χ² 統計量をn-pで割ったスケール推定値を返す
func (g *GLM) estimateScale(y, mu []float64, p int) float64 {
	var chi2 float64
	for i, v := range y {
		r := v - mu[i]
		chi2 += r * r / g.fam.Variance(mu[i])
	}
	return chi2 / float64(len(y)-p)
}
