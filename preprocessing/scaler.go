// Package preprocessing は特徴量の前処理（標準化）を提供します。
package preprocessing

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/lidarml/core/model"
	"github.com/YuminosukeSato/lidarml/core/parallel"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// minScale 未満の標準偏差は分散ゼロとみなす
const minScale = 1e-8

var _ model.Transformer = (*StandardScaler)(nil)

// DegeneratePolicy は分散ゼロの特徴量に対する扱いを表す
type DegeneratePolicy int

const (
	// SkipScaling はスケールを1.0にして平均の除去のみ行う（警告を出す）
	SkipScaling DegeneratePolicy = iota
	// FailFast はFitをDegenerateFeatureErrorで失敗させる
	FailFast
)

// String は設定ファイルで使う名前を返す
func (p DegeneratePolicy) String() string {
	switch p {
	case SkipScaling:
		return "skip"
	case FailFast:
		return "fail"
	default:
		return fmt.Sprintf("DegeneratePolicy(%d)", int(p))
	}
}

// ParseDegeneratePolicy は "skip" または "fail" を解釈する
func ParseDegeneratePolicy(s string) (DegeneratePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return SkipScaling, nil
	case "fail":
		return FailFast, nil
	default:
		return SkipScaling, errors.NewValidationError("scaler.zero_variance", "must be \"skip\" or \"fail\"", s)
	}
}

// ScalerParameters は学習済みスケーラーの統計量。
// Mean と Scale は特徴量と同じ順序・同じ長さを持つ。
type ScalerParameters struct {
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
	Var      []float64 `json:"var"`
	NSamples int       `json:"n_samples"`
}

// TransformVector は1サンプルを標準化する: (x - mean) / scale
func (p ScalerParameters) TransformVector(x []float64) ([]float64, error) {
	if len(x) != len(p.Mean) {
		return nil, errors.NewDimensionError("ScalerParameters.TransformVector", len(p.Mean), len(x), 1)
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - p.Mean[j]) / p.Scale[j]
	}
	return out, nil
}

// TransformMatrix は行列の各行を標準化する
func (p ScalerParameters) TransformMatrix(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(p.Mean) {
		return nil, errors.NewDimensionError("ScalerParameters.TransformMatrix", len(p.Mean), c, 1)
	}
	result := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(r, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				result.Set(i, j, (X.At(i, j)-p.Mean[j])/p.Scale[j])
			}
		}
	})
	return result, nil
}

// Clone はパラメータのディープコピーを返す
func (p ScalerParameters) Clone() ScalerParameters {
	return ScalerParameters{
		Mean:     append([]float64(nil), p.Mean...),
		Scale:    append([]float64(nil), p.Scale...),
		Var:      append([]float64(nil), p.Var...),
		NSamples: p.NSamples,
	}
}

// Option はStandardScalerの設定関数
type Option func(*StandardScaler)

// WithDegeneratePolicy は分散ゼロの特徴量の扱いを設定する
func WithDegeneratePolicy(policy DegeneratePolicy) Option {
	return func(s *StandardScaler) {
		s.policy = policy
	}
}

// WithFeatureNames は警告・エラーに使う特徴量名を設定する
func WithFeatureNames(names ...string) Option {
	return func(s *StandardScaler) {
		s.featureNames = append([]string(nil), names...)
	}
}

// StandardScaler は特徴量ごとに平均0・標準偏差1へ変換する標準化スケーラー。
// 標準偏差は母標準偏差（自由度n）を使う。
type StandardScaler struct {
	model.BaseEstimator

	params       ScalerParameters
	nFeatures    int
	featureNames []string
	policy       DegeneratePolicy
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(
//	    preprocessing.WithFeatureNames("Accuracy", "Score"),
//	)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(opts ...Option) *StandardScaler {
	s := &StandardScaler{policy: SkipScaling}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit は訓練データから各特徴量の平均と標準偏差を計算する。
// 標準偏差がゼロの特徴量はポリシーに従って扱う。
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if s.featureNames != nil && len(s.featureNames) != c {
		return errors.NewDimensionError("StandardScaler.Fit", len(s.featureNames), c, 1)
	}
	if err := errors.CheckMatrix("StandardScaler.Fit", X, r, c); err != nil {
		return err
	}

	params := ScalerParameters{
		Mean:     make([]float64, c),
		Scale:    make([]float64, c),
		Var:      make([]float64, c),
		NSamples: r,
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		params.Mean[j] = mean
		params.Var[j] = std * std
		params.Scale[j] = std

		if std < minScale {
			name := s.featureName(j)
			if s.policy == FailFast {
				s.Reset()
				return errors.NewDegenerateFeatureError(name, j)
			}
			errors.Warn(errors.NewZeroVarianceWarning(name, j))
			params.Scale[j] = 1.0
		}
	}

	s.params = params
	s.nFeatures = c
	s.SetFitted()
	return nil
}

// Transform は学習済みの統計量でデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "Transform")
	}
	return s.params.TransformMatrix(X)
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.nFeatures {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", s.nFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.params.Scale[j]+s.params.Mean[j])
		}
	}
	return result, nil
}

// Params は学習済みパラメータのコピーを返す
func (s *StandardScaler) Params() (ScalerParameters, error) {
	if !s.IsFitted() {
		return ScalerParameters{}, errors.NewNotFittedError("StandardScaler", "Params")
	}
	return s.params.Clone(), nil
}

// SetParams は保存済みの統計量から学習済み状態を復元する
func (s *StandardScaler) SetParams(params ScalerParameters) error {
	if len(params.Mean) == 0 || len(params.Mean) != len(params.Scale) {
		return errors.NewValidationError("ScalerParameters", "mean and scale must be non-empty and equal length", len(params.Scale))
	}
	for j, v := range params.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewValidationError("ScalerParameters.Scale", fmt.Sprintf("invalid scale at index %d", j), v)
		}
	}
	s.params = params.Clone()
	s.nFeatures = len(params.Mean)
	s.SetFitted()
	return nil
}

// NFeatures は学習時の特徴量数を返す
func (s *StandardScaler) NFeatures() int {
	return s.nFeatures
}

// FeatureNames は設定された特徴量名を返す（未設定ならnil）
func (s *StandardScaler) FeatureNames() []string {
	return append([]string(nil), s.featureNames...)
}

// Policy は分散ゼロの扱いを返す
func (s *StandardScaler) Policy() DegeneratePolicy {
	return s.policy
}

// GetParams はハイパーパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"zero_variance": s.policy.String(),
		"feature_names": s.FeatureNames(),
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return "StandardScaler(fitted=false)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "StandardScaler(n_features=%d, n_samples=%d)", s.nFeatures, s.params.NSamples)
	for j := 0; j < s.nFeatures; j++ {
		fmt.Fprintf(&b, "\n  %-12s mean=%.6f scale=%.6f", s.featureName(j), s.params.Mean[j], s.params.Scale[j])
	}
	return b.String()
}

func (s *StandardScaler) featureName(j int) string {
	if j < len(s.featureNames) {
		return s.featureNames[j]
	}
	return fmt.Sprintf("x%d", j)
}
