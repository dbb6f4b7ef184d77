package cdrc

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/causalcurve/glm"
	"github.com/YuminosukeSato/causalcurve/pkg/errors"
)

// GPS は一般化傾向スコア関数
//
// フィット時に得た観測ごとのパラメータを族ごとのタグ付きバリアントとして
// 保持し、単一のDensityディスパッチで評価する:
//
//	normal:    N(mean[i], sigma) を問い合わせ処置値で評価
//	lognormal: N(mean[i], sigma) を log(問い合わせ処置値) で評価
//	gamma:     Gamma(shape[i], scale) を問い合わせ処置値で評価
//
// mean/shape は観測ごとのベクトル、sigma/scale は全観測共通のスカラー。
// 作成後は不変
type GPS struct {
	family Family

	// normal/lognormal: 条件付き平均（lognormalではlog Tの平均）と
	// プールされた残差標準偏差
	mean  []float64
	sigma float64

	// gamma: 観測ごとの形状パラメータとプールされた尺度パラメータ
	shape []float64
	scale float64
}

// Family はこのGPSの分布族を返す
func (g *GPS) Family() Family { return g.family }

// NumObs はフィットに使われた観測数を返す
func (g *GPS) NumObs() int {
	if g.family == FamilyGamma {
		return len(g.shape)
	}
	return len(g.mean)
}

// Density はスカラーの処置値を全観測のパラメータに対してブロードキャストし、
// 観測ごとの密度ベクトルを返す。グリッド評価で使用する。
// lognormal族では問い合わせ値が正であることは呼び出し側の契約
func (g *GPS) Density(t float64) []float64 {
	n := g.NumObs()
	out := make([]float64, n)

	switch g.family {
	case FamilyLognormal:
		lt := math.Log(t)
		for i := 0; i < n; i++ {
			out[i] = distuv.Normal{Mu: g.mean[i], Sigma: g.sigma}.Prob(lt)
		}
	case FamilyGamma:
		rate := 1 / g.scale
		for i := 0; i < n; i++ {
			out[i] = distuv.Gamma{Alpha: g.shape[i], Beta: rate}.Prob(t)
		}
	default:
		for i := 0; i < n; i++ {
			out[i] = distuv.Normal{Mu: g.mean[i], Sigma: g.sigma}.Prob(t)
		}
	}

	return out
}

// DensityAt は観測された処置ベクトルを位置ごとに対応するパラメータで評価する
// len(t)は観測数と一致している必要がある
func (g *GPS) DensityAt(t []float64) ([]float64, error) {
	n := g.NumObs()
	if len(t) != n {
		return nil, errors.NewDimensionError("GPS.DensityAt", n, len(t), 0)
	}

	out := make([]float64, n)

	switch g.family {
	case FamilyLognormal:
		for i, v := range t {
			out[i] = distuv.Normal{Mu: g.mean[i], Sigma: g.sigma}.Prob(math.Log(v))
		}
	case FamilyGamma:
		rate := 1 / g.scale
		for i, v := range t {
			out[i] = distuv.Gamma{Alpha: g.shape[i], Beta: rate}.Prob(v)
		}
	default:
		for i, v := range t {
			out[i] = distuv.Normal{Mu: g.mean[i], Sigma: g.sigma}.Prob(v)
		}
	}

	return out, nil
}

// popStd は母標準偏差（ddof=0）を返す
func popStd(x []float64) float64 {
	m := stat.Mean(x, nil)
	var ss float64
	for _, v := range x {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(x)))
}

// requirePositive は全要素が正であることを確認する
func requirePositive(t []float64, family Family) error {
	for _, v := range t {
		if v <= 0 {
			return errors.NewValueError("fitGPSFamily",
				"treatment values must be strictly positive for the "+string(family)+" family")
		}
	}
	return nil
}

// fitNormalGPS は正規族GLM（T ~ X）でGPSをモデル化する
func fitNormalGPS(T []float64, X mat.Matrix, maxIter int) (*GPS, float64, error) {
	res, err := glm.NewGLM(glm.NewFamily(glm.GaussianFamily), glm.WithMaxIter(maxIter)).Fit(T, X)
	if err != nil {
		return nil, 0, err
	}

	return &GPS{
		family: FamilyNormal,
		mean:   res.FittedValues(),
		sigma:  popStd(res.Resid()),
	}, res.Deviance(), nil
}

// fitLognormalGPS は正規族GLM（log T ~ X）でGPSをモデル化する
// （処置が対数正規分布に従うと仮定する）
func fitLognormalGPS(T []float64, X mat.Matrix, maxIter int) (*GPS, float64, error) {
	if err := requirePositive(T, FamilyLognormal); err != nil {
		return nil, 0, err
	}

	logT := make([]float64, len(T))
	for i, v := range T {
		logT[i] = math.Log(v)
	}

	res, err := glm.NewGLM(glm.NewFamily(glm.GaussianFamily), glm.WithMaxIter(maxIter)).Fit(logT, X)
	if err != nil {
		return nil, 0, err
	}

	return &GPS{
		family: FamilyLognormal,
		mean:   res.FittedValues(),
		sigma:  popStd(res.Resid()),
	}, res.Deviance(), nil
}

// fitGammaGPS はガンマ族GLM（逆数リンク）でGPSをモデル化する
// 形状パラメータは観測ごとの μ̂/scale、尺度はプールされたスカラー
func fitGammaGPS(T []float64, X mat.Matrix, maxIter int) (*GPS, float64, error) {
	if err := requirePositive(T, FamilyGamma); err != nil {
		return nil, 0, err
	}

	res, err := glm.NewGLM(glm.NewFamily(glm.GammaFamily), glm.WithMaxIter(maxIter)).Fit(T, X)
	if err != nil {
		return nil, 0, err
	}

	scale := res.Scale()
	mu := res.FittedValues()
	shape := make([]float64, len(mu))
	for i, m := range mu {
		shape[i] = m / scale
	}

	return &GPS{
		family: FamilyGamma,
		shape:  shape,
		scale:  scale,
	}, res.Deviance(), nil
}

// fitGPSFamily は指定された族のGPSをフィットする
func fitGPSFamily(family Family, T []float64, X mat.Matrix, maxIter int) (*GPS, float64, error) {
	switch family {
	case FamilyNormal:
		return fitNormalGPS(T, X, maxIter)
	case FamilyLognormal:
		return fitLognormalGPS(T, X, maxIter)
	case FamilyGamma:
		return fitGammaGPS(T, X, maxIter)
	default:
		return nil, 0, errors.NewValueError("fitGPSFamily", "unknown GPS family: "+string(family))
	}
}

// familyFit は族選択の1候補
type familyFit struct {
	family   Family
	gps      *GPS
	deviance float64
}

// pickBest は逸脱度最小の候補のインデックスを返す
// NaN/Infの逸脱度は最下位として扱い、同値の場合は先に現れた候補が勝つ
func pickBest(fits []familyFit) (int, bool) {
	best := -1
	bestDev := math.Inf(1)
	for i, f := range fits {
		if f.gps == nil || math.IsNaN(f.deviance) || math.IsInf(f.deviance, 0) {
			continue
		}
		if f.deviance < bestDev {
			best = i
			bestDev = f.deviance
		}
	}
	return best, best >= 0
}

// selectGPS は3つの族を全て無条件にフィットし、逸脱度最小のモデルを返す
// 反復順は normal, lognormal, gamma（同値ならnormalが勝つ）
func selectGPS(T []float64, X mat.Matrix, maxIter int) (Family, *GPS, float64, error) {
	type fitter struct {
		family Family
		fn     func([]float64, mat.Matrix, int) (*GPS, float64, error)
	}

	fitters := []fitter{
		{FamilyNormal, fitNormalGPS},
		{FamilyLognormal, fitLognormalGPS},
		{FamilyGamma, fitGammaGPS},
	}

	fits := make([]familyFit, 0, len(fitters))
	for _, f := range fitters {
		gps, dev, err := f.fn(T, X, maxIter)
		if err != nil {
			// フィットできない族は候補から外す（例: 非正の処置値でのgamma）
			fits = append(fits, familyFit{family: f.family, deviance: math.NaN()})
			continue
		}
		fits = append(fits, familyFit{family: f.family, gps: gps, deviance: dev})
	}

	idx, ok := pickBest(fits)
	if !ok {
		return FamilyAuto, nil, 0, errors.NewModelError("selectGPS",
			"no GPS family produced a finite deviance", nil)
	}

	return fits[idx].family, fits[idx].gps, fits[idx].deviance, nil
}
