package cdrc

import (
	"io"
	"log/slog"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/causalcurve/core/parallel"
	"github.com/YuminosukeSato/causalcurve/gam"
	"github.com/YuminosukeSato/causalcurve/pkg/errors"
	"github.com/YuminosukeSato/causalcurve/pkg/log"
)

// Model はフィット済みの用量反応モデル
//
// Fitが生成した全ての派生成果物（処置グリッド、GPS、観測ごとのGPS値、
// GPS×グリッド行列、結果GAM）を保持する。作成後は読み取り専用であり、
// 同じModelに対するCalculateCDRCの繰り返し呼び出しは同一の結果を返す
type Model struct {
	nObs             int
	treatmentGridNum int

	grid        []float64
	bestFamily  Family
	gpsDeviance float64
	gps         *GPS
	gpsValues   []float64
	gpsAtGrid   *mat.Dense
	outcome     *gam.LinearGAM
	gamSummary  *gam.Summary
	summaryText string

	logger  *slog.Logger
	verbose bool
}

// NumObs はフィットに使われた観測数を返す
func (m *Model) NumObs() int { return m.nObs }

// BestGPSFamily は使用されたGPS族を返す
// 族が自動選択された場合は逸脱度最小の族
func (m *Model) BestGPSFamily() Family { return m.bestFamily }

// GPSDeviance はGPSモデルの逸脱度を返す
func (m *Model) GPSDeviance() float64 { return m.gpsDeviance }

// GridValues は処置グリッド（等間隔の経験分位数）のコピーを返す
func (m *Model) GridValues() []float64 {
	out := make([]float64, len(m.grid))
	copy(out, m.grid)
	return out
}

// GPSValues は観測された処置値ごとのGPSのコピーを返す
func (m *Model) GPSValues() []float64 {
	out := make([]float64, len(m.gpsValues))
	copy(out, m.gpsValues)
	return out
}

// GAMSummary は結果GAMの構造化された要約を返す
func (m *Model) GAMSummary() *gam.Summary { return m.gamSummary }

// PrintGAMSummary はフィット時に生成したGAM要約テキストを書き出す
// wがnilの場合は標準出力に書く
func (m *Model) PrintGAMSummary(w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	_, err := io.WriteString(w, m.summaryText)
	return err
}

// CalculateCDRC はフィット済みモデルからCDRCの点推定と点ごとの信頼帯を計算する
//
// 各グリッド値について、全観測に固定グリッド処置値とその観測のグリッド別
// GPSを与えて結果を予測し、観測方向に平均して周辺推定値を得る
// （個別予測の平均であり、単一の周辺予測ではない）。
// ciは(0, 1)の開区間、報告値は小数第3位に丸められる
func (m *Model) CalculateCDRC(ci float64) (*Curve, error) {
	if math.IsNaN(ci) || ci <= 0 || ci >= 1 {
		return nil, errors.NewValueError("CalculateCDRC",
			"ci parameter should be between (0, 1)")
	}

	m.logProgress("calculating CDRC estimates for each treatment grid value",
		log.OperationKey, log.OperationCalculateCDRC,
		log.CIKey, ci,
	)

	point, lower, upper, err := m.cdrcPredictions(ci)
	if err != nil {
		return nil, err
	}

	// 各グリッド列について観測方向に平均を取り、周辺曲線と信頼帯を得る
	curve := &Curve{
		Treatment: m.GridValues(),
		CDRC:      make([]float64, m.treatmentGridNum),
		LowerCI:   make([]float64, m.treatmentGridNum),
		UpperCI:   make([]float64, m.treatmentGridNum),
	}

	for j := 0; j < m.treatmentGridNum; j++ {
		var sp, sl, su float64
		for i := 0; i < m.nObs; i++ {
			sp += point.At(i, j)
			sl += lower.At(i, j)
			su += upper.At(i, j)
		}
		n := float64(m.nObs)
		curve.CDRC[j] = round3(sp / n)
		curve.LowerCI[j] = round3(sl / n)
		curve.UpperCI[j] = round3(su / n)
	}

	return curve, nil
}

// cdrcPredictions は(n_observations × treatment_grid_num)の点推定・下限・上限の
// 3つの行列を埋める。グリッド列jの問い合わせは、固定グリッド処置値と
// 各観測のGPS-at-grid[:,j]のペア。列ごとに独立なのでグリッド方向に並列化する
func (m *Model) cdrcPredictions(ci float64) (point, lower, upper *mat.Dense, err error) {
	n := m.nObs
	point = mat.NewDense(n, m.treatmentGridNum, nil)
	lower = mat.NewDense(n, m.treatmentGridNum, nil)
	upper = mat.NewDense(n, m.treatmentGridNum, nil)

	colErrs := make([]error, m.treatmentGridNum)

	parallel.ParallelizeWithThreshold(m.treatmentGridNum, parallelGridThreshold, func(start, end int) {
		query := mat.NewDense(n, 2, nil)

		for j := start; j < end; j++ {
			for i := 0; i < n; i++ {
				query.Set(i, 0, m.grid[j])
				query.Set(i, 1, m.gpsAtGrid.At(i, j))
			}

			preds, err := m.outcome.Predict(query)
			if err != nil {
				colErrs[j] = err
				continue
			}
			intervals, err := m.outcome.PredictionIntervals(query, ci)
			if err != nil {
				colErrs[j] = err
				continue
			}

			for i := 0; i < n; i++ {
				point.Set(i, j, round3(preds[i]))
				lower.Set(i, j, round3(intervals.At(i, 0)))
				upper.Set(i, j, round3(intervals.At(i, 1)))
			}
		}
	})

	for _, e := range colErrs {
		if e != nil {
			return nil, nil, nil, e
		}
	}

	return point, lower, upper, nil
}

// logProgress はverbose時はInfo、それ以外はDebugで進行状況を記録する
func (m *Model) logProgress(msg string, args ...any) {
	if m.verbose {
		m.logger.Info(msg, args...)
		return
	}
	m.logger.Debug(msg, args...)
}

// round3 は小数第3位に丸める
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
