package glm

import "math"

// FamilyType はGLMの誤差分布族を識別する
type FamilyType int

const (
	// GaussianFamily は正規分布族（恒等リンク）
	GaussianFamily FamilyType = iota
	// GammaFamily はガンマ分布族（逆数リンク）
	GammaFamily
)

// Family はGLMの分布族とその正準リンク・分散関数をまとめたもの
// リンク関数 g、逆リンク g⁻¹、リンク微分 g'(μ)、分散関数 V(μ)、
// 逸脱度（deviance）をIRLSソルバーに提供する
type Family struct {
	Type FamilyType
	Name string
}

// NewFamily は指定された分布族のFamilyを作成する
func NewFamily(t FamilyType) *Family {
	switch t {
	case GammaFamily:
		return &Family{Type: GammaFamily, Name: "gamma"}
	default:
		return &Family{Type: GaussianFamily, Name: "gaussian"}
	}
}

// StartingMu はIRLSの初期平均値を返す
// statsmodelsと同じく (y + ȳ)/2 から開始する
func (f *Family) StartingMu(y []float64) []float64 {
	var ybar float64
	for _, v := range y {
		ybar += v
	}
	ybar /= float64(len(y))

	mu := make([]float64, len(y))
	for i, v := range y {
		mu[i] = (v + ybar) / 2
	}
	return mu
}

// Link はリンク関数 g(μ) を適用し eta に書き込む
func (f *Family) Link(mu, eta []float64) {
	switch f.Type {
	case GammaFamily:
		for i, m := range mu {
			eta[i] = 1 / m
		}
	default:
		copy(eta, mu)
	}
}

// InvLink は逆リンク関数 g⁻¹(η) を適用し mu に書き込む
func (f *Family) InvLink(eta, mu []float64) {
	switch f.Type {
	case GammaFamily:
		for i, e := range eta {
			mu[i] = 1 / e
		}
	default:
		copy(mu, eta)
	}
}

// LinkDeriv はリンク微分 g'(μ) を返す
func (f *Family) LinkDeriv(mu float64) float64 {
	switch f.Type {
	case GammaFamily:
		return -1 / (mu * mu)
	default:
		return 1
	}
}

// Variance は分散関数 V(μ) を返す
func (f *Family) Variance(mu float64) float64 {
	switch f.Type {
	case GammaFamily:
		return mu * mu
	default:
		return 1
	}
}

// Deviance は逸脱度を計算する（小さいほど適合が良い）
//
//	gaussian: Σ(y-μ)²
//	gamma:    2Σ((y-μ)/μ - log(y/μ))
//
// ガンマ族でμが非正になった場合はNaNになる。呼び出し側（族選択）は
// NaNを最下位として扱う。
func (f *Family) Deviance(y, mu []float64) float64 {
	var dev float64
	switch f.Type {
	case GammaFamily:
		for i, v := range y {
			dev += 2 * ((v-mu[i])/mu[i] - math.Log(v/mu[i]))
		}
	default:
		for i, v := range y {
			r := v - mu[i]
			dev += r * r
		}
	}
	return dev
}
