package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// WeightsFormatVersion は生パラメータ成果物のフォーマットバージョン。
// Core MLモデルとは独立にバージョン管理される。
const WeightsFormatVersion = "1.0"

// ModelWeights は学習済み回帰パラメータを表す構造体（シリアライゼーション用）
// スケーラーの統計量は含まない。
type ModelWeights struct {
	// ModelType はモデルの種類（LinearRegression等）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数
	Coefficients []float64 `json:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// Features は特徴量の名前（オプション）
	Features []string `json:"features,omitempty"`

	// Target は目的変数の名前（オプション）
	Target string `json:"target,omitempty"`

	// Metadata は追加のメタデータ（学習サンプル数等）
	Metadata map[string]string `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`

	// Checksum は係数と切片のSHA-256
	Checksum string `json:"checksum,omitempty"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// ComputeChecksum は係数と切片からチェックサムを計算する
func (mw *ModelWeights) ComputeChecksum() string {
	data, _ := json.Marshal(append(append([]float64{}, mw.Coefficients...), mw.Intercept))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Seal はチェックサムを設定する
func (mw *ModelWeights) Seal() {
	mw.Checksum = mw.ComputeChecksum()
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if mw.Version != WeightsFormatVersion {
		return errors.NewValidationError("version", "unsupported weights format", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
	}
	if mw.IsFitted && len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", 0)
	}
	if len(mw.Features) > 0 && len(mw.Features) != len(mw.Coefficients) {
		return errors.NewValidationError("features", "must name every coefficient", mw.Features)
	}
	if mw.Checksum != "" && mw.Checksum != mw.ComputeChecksum() {
		return errors.NewValidationError("checksum", "weights may be corrupted", mw.Checksum)
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:    mw.ModelType,
		Version:      mw.Version,
		Intercept:    mw.Intercept,
		Target:       mw.Target,
		IsFitted:     mw.IsFitted,
		Checksum:     mw.Checksum,
		Coefficients: append([]float64(nil), mw.Coefficients...),
		Features:     append([]string(nil), mw.Features...),
		Metadata:     make(map[string]string, len(mw.Metadata)),
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
