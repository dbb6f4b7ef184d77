package cdrc

import (
	"fmt"
	"strings"
)

// Curve はCDRCの推定結果
//
// 4つのスライスは同じ長さ（treatment_grid_num）で、インデックスjが
// 処置グリッド値Treatment[j]に対する推定を表す。Treatmentは丸められず、
// CDRC/LowerCI/UpperCIは小数第3位に丸められている
type Curve struct {
	// Treatment は処置グリッド値（観測処置の経験分位数、昇順）
	Treatment []float64
	// CDRC は各グリッド値での周辺期待結果の点推定
	CDRC []float64
	// LowerCI は点ごとの信頼帯の下限
	LowerCI []float64
	// UpperCI は点ごとの信頼帯の上限
	UpperCI []float64
}

// Len はグリッド点の数を返す
func (c *Curve) Len() int { return len(c.Treatment) }

// String は曲線を整形したテーブルとして返す
func (c *Curve) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%12s %12s %12s %12s\n", "Treatment", "CDRC", "Lower_CI", "Upper_CI"))
	for j := 0; j < c.Len(); j++ {
		b.WriteString(fmt.Sprintf("%12.4f %12.3f %12.3f %12.3f\n",
			c.Treatment[j], c.CDRC[j], c.LowerCI[j], c.UpperCI[j]))
	}
	return b.String()
}
