// Package metrics は回帰モデルの評価指標を提供します。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// RegressionScores はホールドアウト評価の結果をまとめた構造体
type RegressionScores struct {
	N    int     `json:"n"`
	R2   float64 `json:"r2"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// Evaluate はR²・MSE・RMSE・MAEをまとめて計算する
func Evaluate(yTrue, yPred []float64) (RegressionScores, error) {
	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return RegressionScores{}, err
	}
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return RegressionScores{}, err
	}
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return RegressionScores{}, err
	}
	return RegressionScores{
		N:    len(yTrue),
		R2:   r2,
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  mae,
	}, nil
}

func checkPair(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return sum / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}

	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue)), nil
}

// R2Score は決定係数 R² = 1 - SS_res/SS_tot を計算する。
// yTrue が定数（SS_tot == 0）の場合は定義できないため、
// UndefinedMetricWarning を発生させて NaN を返す。
// 定数判定は平均からの偏差ではなく値の比較で行う。
// 1.0 を返すのは残差がすべて0の場合のみ。
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}

	if isConstant(yTrue) {
		errors.Warn(errors.NewUndefinedMetricWarning("r2_score", "zero variance in y_true", math.NaN()))
		return math.NaN(), nil
	}

	yMean := stat.Mean(yTrue, nil)
	var ssTot, ssRes float64
	for i := range yTrue {
		ssTot += (yTrue[i] - yMean) * (yTrue[i] - yMean)
		ssRes += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}

	r2 := 1 - ssRes/ssTot
	if r2 == 1 && ssRes > 0 {
		r2 = math.Nextafter(1, 0)
	}
	return r2, nil
}

func isConstant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

// R2ScoreMatrix は n×1 行列形式の入力に対して R² を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("R2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return R2Score(t, p)
}

// MSEMatrix は n×1 行列形式の入力に対して MSE を計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

func columns(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred), nil
}
