package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// 使用例:
//
//	weights, _ := reg.ExportWeights()
//	err := model.SaveModel(weights, "linear_regression_model.pkl")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.NewSerializationError("model.SaveModel", "failed to create file", err)
	}
	defer file.Close()

	if err := SaveModelToWriter(model, file); err != nil {
		return err
	}
	return file.Close()
}

// LoadModel はgob形式のファイルからモデルを読み込む
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewSerializationError("model.LoadModel", "failed to open file", err)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.NewSerializationError("model.SaveModelToWriter", "failed to encode model", err)
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.NewSerializationError("model.LoadModelFromReader", "failed to decode model", err)
	}
	return nil
}

// SaveWeights は重みを保存する。拡張子が .json の場合はJSON、それ以外はgob。
// 保存前にチェックサムを設定する。
func SaveWeights(weights *ModelWeights, filename string) error {
	w := weights.Clone()
	w.Seal()
	if err := w.Validate(); err != nil {
		return err
	}

	if !isJSON(filename) {
		return SaveModel(w, filename)
	}

	data, err := w.ToJSON()
	if err != nil {
		return errors.NewSerializationError("model.SaveWeights", "failed to marshal weights", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.NewSerializationError("model.SaveWeights", "failed to write file", err)
	}
	return nil
}

// LoadWeights はSaveWeightsで保存した重みを読み込み、検証する
func LoadWeights(filename string) (*ModelWeights, error) {
	w := &ModelWeights{}
	if isJSON(filename) {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, errors.NewSerializationError("model.LoadWeights", "failed to read file", err)
		}
		if err := w.FromJSON(data); err != nil {
			return nil, errors.NewSerializationError("model.LoadWeights", "failed to unmarshal weights", err)
		}
	} else if err := LoadModel(w, filename); err != nil {
		return nil, err
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func isJSON(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".json")
}
