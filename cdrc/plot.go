package cdrc

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/causalcurve/pkg/errors"
)

// PlotCurve は推定された曲線をPNG/SVGなどの画像ファイルとして保存する
// 点推定は実線、信頼帯の上下限は破線で描画する。出力形式は
// pathの拡張子で決まる
func PlotCurve(c *Curve, path string) error {
	if c == nil || c.Len() == 0 {
		return errors.NewValueError("PlotCurve", "curve is empty")
	}

	p := plot.New()
	p.Title.Text = "Causal Dose-Response Curve"
	p.X.Label.Text = "Treatment"
	p.Y.Label.Text = "Outcome"

	center, err := plotter.NewLine(curveXYs(c.Treatment, c.CDRC))
	if err != nil {
		return errors.Wrap(err, "PlotCurve: point estimate line")
	}
	center.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	center.LineStyle.Width = vg.Points(1.5)

	dashes := []vg.Length{vg.Points(4), vg.Points(3)}

	lower, err := plotter.NewLine(curveXYs(c.Treatment, c.LowerCI))
	if err != nil {
		return errors.Wrap(err, "PlotCurve: lower band line")
	}
	lower.LineStyle.Dashes = dashes
	lower.LineStyle.Color = color.Gray{Y: 120}

	upper, err := plotter.NewLine(curveXYs(c.Treatment, c.UpperCI))
	if err != nil {
		return errors.Wrap(err, "PlotCurve: upper band line")
	}
	upper.LineStyle.Dashes = dashes
	upper.LineStyle.Color = color.Gray{Y: 120}

	p.Add(center, lower, upper)
	p.Legend.Add("CDRC", center)
	p.Legend.Add("CI band", lower)
	p.Legend.Top = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "PlotCurve: save")
	}
	return nil
}

func curveXYs(x, y []float64) plotter.XYs {
	xys := make(plotter.XYs, len(x))
	for i := range x {
		xys[i].X = x[i]
		xys[i].Y = y[i]
	}
	return xys
}
