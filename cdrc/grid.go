package cdrc

import (
	"math"
	"sort"
)

// treatmentGrid は観測された処置値の経験分位数によるグリッドを構築する
//
// 確率水準は[0, 1]を両端含みでnum等分したもの。グリッドは常に観測された
// 最小値と最大値を含み、非減少となる（端の分位数で同値が続く場合は
// グリッド値が重複し得る）。分位数は線形補間（numpyのデフォルトと同じ）
func treatmentGrid(T []float64, num int) []float64 {
	sorted := append([]float64(nil), T...)
	sort.Float64s(sorted)

	grid := make([]float64, num)
	for j := 0; j < num; j++ {
		p := float64(j) / float64(num-1)
		grid[j] = quantileLinear(sorted, p)
	}
	return grid
}

// quantileLinear はソート済みデータの線形補間分位数を返す
func quantileLinear(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	h := p * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
