// Package linear は最小二乗法による線形回帰を提供します。
package linear

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/lidarml/core/model"
	"github.com/YuminosukeSato/lidarml/core/parallel"
	"github.com/YuminosukeSato/lidarml/metrics"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// ModelType はエクスポートされる重みに記録されるモデル名
const ModelType = "LinearRegression"

var (
	_ model.Regressor      = (*LinearRegression)(nil)
	_ model.WeightExporter = (*LinearRegression)(nil)
)

// defaultRcond は特異値の打ち切り閾値（最大特異値に対する比）
const defaultRcond = 1e-12

// RegressionParameters は学習済みの係数と切片。
// 予測値は Intercept + Σ Coef[j]*x[j]。
type RegressionParameters struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// PredictVector は1サンプルの予測値を返す
func (p RegressionParameters) PredictVector(x []float64) (float64, error) {
	if len(x) != len(p.Coef) {
		return 0, errors.NewDimensionError("RegressionParameters.PredictVector", len(p.Coef), len(x), 1)
	}
	pred := p.Intercept
	for j, v := range x {
		pred += p.Coef[j] * v
	}
	return pred, nil
}

// PredictMatrix は各行の予測値を n×1 行列で返す
func (p RegressionParameters) PredictMatrix(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(p.Coef) {
		return nil, errors.NewDimensionError("RegressionParameters.PredictMatrix", len(p.Coef), c, 1)
	}
	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := p.Intercept
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * p.Coef[j]
			}
			predictions.Set(i, 0, pred)
		}
	})
	return predictions, nil
}

// Clone はパラメータのディープコピーを返す
func (p RegressionParameters) Clone() RegressionParameters {
	return RegressionParameters{Coef: append([]float64(nil), p.Coef...), Intercept: p.Intercept}
}

// LinearRegression は通常最小二乗法による線形回帰モデル
type LinearRegression struct {
	model.BaseEstimator

	params       RegressionParameters
	nFeatures    int
	nSamples     int
	fitIntercept bool
	featureNames []string
	targetName   string
	rcond        float64
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		fitIntercept: true,
		rcond:        defaultRcond,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit は残差二乗和を最小化する係数を求める。
// 切片ありの場合は X と y を中心化してから解き、切片を平均から復元する。
// 設計行列はQR分解で解き、ランク落ちの場合はSVDによる最小ノルム解を使う。
// 同じ入力に対して結果は決定的。
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if lr.featureNames != nil && len(lr.featureNames) != c {
		return errors.NewDimensionError("LinearRegression.Fit", len(lr.featureNames), c, 1)
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", X, r, c); err != nil {
		return err
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", y, ry, cy); err != nil {
		return err
	}

	A := mat.DenseCopyOf(X)
	b := mat.DenseCopyOf(y)

	xMean := make([]float64, c)
	var yMean float64
	if lr.fitIntercept {
		col := make([]float64, r)
		for j := 0; j < c; j++ {
			mat.Col(col, j, A)
			xMean[j] = stat.Mean(col, nil)
		}
		yMean = stat.Mean(mat.Col(nil, 0, b), nil)

		parallel.ParallelizeWithThreshold(r, parallel.DefaultThreshold, func(start, end int) {
			for i := start; i < end; i++ {
				for j := 0; j < c; j++ {
					A.Set(i, j, A.At(i, j)-xMean[j])
				}
				b.Set(i, 0, b.At(i, 0)-yMean)
			}
		})
	}

	coef, err := lr.solve(A, b)
	if err != nil {
		return err
	}

	intercept := 0.0
	if lr.fitIntercept {
		intercept = yMean
		for j := 0; j < c; j++ {
			intercept -= xMean[j] * coef[j]
		}
	}

	if err := errors.CheckNumericalStability("LinearRegression.Fit", append(append([]float64(nil), coef...), intercept)); err != nil {
		return err
	}

	lr.params = RegressionParameters{Coef: coef, Intercept: intercept}
	lr.nFeatures = c
	lr.nSamples = r
	lr.SetFitted()
	return nil
}

// solve は A·w ≈ b の最小二乗解を返す
func (lr *LinearRegression) solve(A, b *mat.Dense) ([]float64, error) {
	r, c := A.Dims()
	if r >= c {
		var qr mat.QR
		qr.Factorize(A)
		var w mat.Dense
		if err := qr.SolveTo(&w, false, b); err == nil {
			return mat.Col(nil, 0, &w), nil
		}
	}

	// ランク落ちまたは劣決定系
	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDThin); !ok {
		return nil, errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(lr.rcond)
	if rank == 0 {
		return make([]float64, c), nil
	}
	var w mat.Dense
	svd.SolveTo(&w, b, rank)
	return mat.Col(nil, 0, &w), nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	return lr.params.PredictMatrix(X)
}

// Score はモデルの決定係数（R²）を計算する。
// y の分散がゼロの場合は NaN を返す。
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	if !lr.IsFitted() {
		return 0, errors.NewNotFittedError("LinearRegression", "Score")
	}

	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}

// Params は学習済みパラメータのコピーを返す
func (lr *LinearRegression) Params() (RegressionParameters, error) {
	if !lr.IsFitted() {
		return RegressionParameters{}, errors.NewNotFittedError("LinearRegression", "Params")
	}
	return lr.params.Clone(), nil
}

// NFeatures は学習時の特徴量数を返す
func (lr *LinearRegression) NFeatures() int {
	return lr.nFeatures
}

// FitIntercept は切片を学習するかどうかを返す
func (lr *LinearRegression) FitIntercept() bool {
	return lr.fitIntercept
}

// GetParams はハイパーパラメータを取得する
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"rcond":         lr.rcond,
	}
}

// ExportWeights は学習済みパラメータを生パラメータ成果物の形式で返す
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "ExportWeights")
	}

	weights := &model.ModelWeights{
		ModelType:    ModelType,
		Version:      model.WeightsFormatVersion,
		Coefficients: append([]float64(nil), lr.params.Coef...),
		Intercept:    lr.params.Intercept,
		Features:     append([]string(nil), lr.featureNames...),
		Target:       lr.targetName,
		IsFitted:     true,
		Metadata: map[string]string{
			"n_samples":     strconv.Itoa(lr.nSamples),
			"fit_intercept": strconv.FormatBool(lr.fitIntercept),
		},
	}
	weights.Seal()
	return weights, nil
}

// ImportWeights はエクスポートされたパラメータから学習済み状態を復元する
func (lr *LinearRegression) ImportWeights(weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights is nil")
	}
	if err := weights.Validate(); err != nil {
		return err
	}
	if weights.ModelType != ModelType {
		return errors.NewValidationError("model_type", "expected "+ModelType, weights.ModelType)
	}
	if !weights.IsFitted {
		return errors.NewValidationError("is_fitted", "weights are not fitted", false)
	}

	lr.params = RegressionParameters{
		Coef:      append([]float64(nil), weights.Coefficients...),
		Intercept: weights.Intercept,
	}
	lr.nFeatures = len(weights.Coefficients)
	if len(weights.Features) > 0 {
		lr.featureNames = append([]string(nil), weights.Features...)
	}
	if weights.Target != "" {
		lr.targetName = weights.Target
	}
	if v, ok := weights.Metadata["n_samples"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			lr.nSamples = n
		}
	}
	if v, ok := weights.Metadata["fit_intercept"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			lr.fitIntercept = b
		}
	}
	lr.SetFitted()
	return nil
}

// String は学習済み方程式を人が読める形で返す
func (lr *LinearRegression) String() string {
	if !lr.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t, fitted=false)", lr.fitIntercept)
	}
	var b strings.Builder
	target := lr.targetName
	if target == "" {
		target = "y"
	}
	fmt.Fprintf(&b, "%s = %.6f", target, lr.params.Intercept)
	for j, w := range lr.params.Coef {
		name := fmt.Sprintf("x%d", j)
		if j < len(lr.featureNames) {
			name = lr.featureNames[j]
		}
		fmt.Fprintf(&b, " %+.6f*%s", w, name)
	}
	return b.String()
}
