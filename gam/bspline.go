package gam

import (
	"github.com/YuminosukeSato/causalcurve/pkg/errors"
)

// bsplineBasis はクランプ一様ノットのBスプライン基底
// 基底数 n、次数 degree、ノットベクトル長 n+degree+1 を持つ
type bsplineBasis struct {
	degree int
	n      int
	lo, hi float64
	knots  []float64
}

// newBSplineBasis は区間[lo, hi]上に一様ノットの基底を作成する
// 基底関数の数はスプライン次数より大きい必要がある
func newBSplineBasis(lo, hi float64, nSplines, degree int) (*bsplineBasis, error) {
	if nSplines <= degree {
		return nil, errors.NewValueError("newBSplineBasis",
			"number of splines must exceed the spline order")
	}
	if hi-lo <= 0 {
		// 定数特徴量でもゼロ割りしないように区間を広げる
		hi = lo + 1
	}

	// 両端にdegree+1個の重複ノット、内部にnSplines-degree-1個の等間隔ノット
	nKnots := nSplines + degree + 1
	nInterior := nSplines - degree - 1
	knots := make([]float64, 0, nKnots)
	for i := 0; i <= degree; i++ {
		knots = append(knots, lo)
	}
	step := (hi - lo) / float64(nInterior+1)
	for i := 1; i <= nInterior; i++ {
		knots = append(knots, lo+float64(i)*step)
	}
	for i := 0; i <= degree; i++ {
		knots = append(knots, hi)
	}

	return &bsplineBasis{
		degree: degree,
		n:      nSplines,
		lo:     lo,
		hi:     hi,
		knots:  knots,
	}, nil
}

// eval は点xにおける全基底関数の値をoutに書き込む（len(out) == n）
// xが区間外の場合は端にクランプする（定数外挿）
func (b *bsplineBasis) eval(x float64, out []float64) {
	if x < b.lo {
		x = b.lo
	}
	if x > b.hi {
		x = b.hi
	}

	t := b.knots
	m := len(t) - 1

	// Cox-de Boor: 次数0の指示関数から次数degreeまで引き上げる
	work := make([]float64, m)
	for i := 0; i < m; i++ {
		if t[i] <= x && x < t[i+1] {
			work[i] = 1
		} else if x == b.hi && t[i] < t[i+1] && t[i+1] == b.hi {
			// 右端点は最後の非退化区間に属するものとして扱う
			work[i] = 1
		}
	}

	for d := 1; d <= b.degree; d++ {
		for i := 0; i < m-d; i++ {
			var v float64
			if t[i+d] != t[i] {
				v += (x - t[i]) / (t[i+d] - t[i]) * work[i]
			}
			if t[i+d+1] != t[i+1] {
				v += (t[i+d+1] - x) / (t[i+d+1] - t[i+1]) * work[i+1]
			}
			work[i] = v
		}
	}

	copy(out, work[:b.n])
}
