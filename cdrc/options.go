package cdrc

// Family はGPSのモデリングに使うGLM分布族を表す
type Family string

const (
	// FamilyAuto は3つの族を全てフィットし逸脱度最小のものを自動選択する
	FamilyAuto Family = ""
	// FamilyNormal は処置を正規分布でモデル化する
	FamilyNormal Family = "normal"
	// FamilyLognormal は処置の対数を正規分布でモデル化する
	FamilyLognormal Family = "lognormal"
	// FamilyGamma は処置をガンマ分布（逆数リンク）でモデル化する
	FamilyGamma Family = "gamma"
)

// Option はEstimatorの設定オプション
type Option func(*Estimator)

// WithGPSFamily はGPSの分布族を指定する
// 指定しない場合は最も適合する族が自動選択される
func WithGPSFamily(f Family) Option {
	return func(e *Estimator) {
		e.gpsFamily = f
	}
}

// WithTreatmentGridNum は処置グリッドの分割数を設定する
// 大きいほど最終的な曲線は滑らかになるが計算時間が増える
func WithTreatmentGridNum(n int) Option {
	return func(e *Estimator) {
		e.treatmentGridNum = n
	}
}

// WithSplineOrder は結果GAMのスプライン次数を設定する（3で3次スプライン）
func WithSplineOrder(order int) Option {
	return func(e *Estimator) {
		e.splineOrder = order
	}
}

// WithNSplines は結果GAMの項ごとのスプライン基底数を設定する
func WithNSplines(n int) Option {
	return func(e *Estimator) {
		e.nSplines = n
	}
}

// WithLambda は結果GAMの平滑化ペナルティの強さを設定する
// 大きいほど強く平滑化される
func WithLambda(lam float64) Option {
	return func(e *Estimator) {
		e.lambda = lam
	}
}

// WithMaxIter はGPSモデルの最尤推定の最大反復回数を設定する
// 結果GAMのソルバーは独立した固定上限を持つ
func WithMaxIter(n int) Option {
	return func(e *Estimator) {
		e.maxIter = n
	}
}

// WithVerbose はフィット進行状況の構造化ログ出力を有効にする
func WithVerbose(v bool) Option {
	return func(e *Estimator) {
		e.verbose = v
	}
}
