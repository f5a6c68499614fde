package coreml

import (
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// Model.proto field numbers.
const (
	fieldSpecificationVersion protowire.Number = 1
	fieldDescription          protowire.Number = 2
	fieldIsUpdatable          protowire.Number = 10
	fieldPipelineRegressor    protowire.Number = 201
	fieldGLMRegressor         protowire.Number = 300
	fieldFeatureVectorizer    protowire.Number = 602
	fieldScaler               protowire.Number = 604

	// Model type oneof members start here.
	firstTypeField protowire.Number = 200

	descInput                protowire.Number = 1
	descOutput               protowire.Number = 10
	descPredictedFeatureName protowire.Number = 11
	descMetadata             protowire.Number = 100

	metaShortDescription protowire.Number = 1
	metaVersionString    protowire.Number = 2
	metaAuthor           protowire.Number = 3
	metaLicense          protowire.Number = 4
	metaUserDefined      protowire.Number = 100

	featName             protowire.Number = 1
	featShortDescription protowire.Number = 2
	featType             protowire.Number = 3

	typeInt64      protowire.Number = 1
	typeDouble     protowire.Number = 2
	typeMultiArray protowire.Number = 5
	typeIsOptional protowire.Number = 1000

	arrayShape    protowire.Number = 1
	arrayDataType protowire.Number = 2

	pipelineRegressorPipeline protowire.Number = 1
	pipelineModels            protowire.Number = 1
	pipelineNames             protowire.Number = 2

	vectorizerInputList  protowire.Number = 1
	inputColumnName      protowire.Number = 1
	inputColumnDimension protowire.Number = 2

	scalerShift protowire.Number = 1
	scalerScale protowire.Number = 2

	glmWeights   protowire.Number = 1
	glmOffset    protowire.Number = 2
	glmTransform protowire.Number = 3

	doubleArrayValue protowire.Number = 1

	mapKey   protowire.Number = 1
	mapValue protowire.Number = 2
)

// Marshal encodes the model as Core ML protobuf bytes. Map entries are
// written in key order, so equal models encode to equal bytes.
func (m *Model) Marshal() (data []byte, err error) {
	defer errors.Recover(&err, "coreml.Marshal")

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return appendModel(nil, m), nil
}

func appendModel(b []byte, m *Model) []byte {
	b = appendVarint(b, fieldSpecificationVersion, uint64(m.SpecificationVersion))
	b = appendMessage(b, fieldDescription, appendDescription(nil, &m.Description))

	switch {
	case m.PipelineRegressor != nil:
		inner := appendMessage(nil, pipelineRegressorPipeline, appendPipeline(nil, m.PipelineRegressor))
		b = appendMessage(b, fieldPipelineRegressor, inner)
	case m.GLMRegressor != nil:
		b = appendMessage(b, fieldGLMRegressor, appendGLM(nil, m.GLMRegressor))
	case m.FeatureVectorizer != nil:
		b = appendMessage(b, fieldFeatureVectorizer, appendVectorizer(nil, m.FeatureVectorizer))
	case m.Scaler != nil:
		b = appendMessage(b, fieldScaler, appendScaler(nil, m.Scaler))
	}
	return b
}

func appendDescription(b []byte, d *Description) []byte {
	for i := range d.Inputs {
		b = appendMessage(b, descInput, appendFeature(nil, &d.Inputs[i]))
	}
	for i := range d.Outputs {
		b = appendMessage(b, descOutput, appendFeature(nil, &d.Outputs[i]))
	}
	b = appendString(b, descPredictedFeatureName, d.PredictedFeatureName)
	if meta := appendMetadata(nil, &d.Metadata); len(meta) > 0 {
		b = appendMessage(b, descMetadata, meta)
	}
	return b
}

func appendMetadata(b []byte, md *Metadata) []byte {
	b = appendString(b, metaShortDescription, md.ShortDescription)
	b = appendString(b, metaVersionString, md.VersionString)
	b = appendString(b, metaAuthor, md.Author)
	b = appendString(b, metaLicense, md.License)

	keys := make([]string, 0, len(md.UserDefined))
	for k := range md.UserDefined {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, mapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, mapValue, protowire.BytesType)
		entry = protowire.AppendString(entry, md.UserDefined[k])
		b = appendMessage(b, metaUserDefined, entry)
	}
	return b
}

func appendFeature(b []byte, f *FeatureDescription) []byte {
	b = appendString(b, featName, f.Name)
	b = appendString(b, featShortDescription, f.ShortDescription)
	return appendMessage(b, featType, appendFeatureType(nil, &f.Type))
}

func appendFeatureType(b []byte, t *FeatureType) []byte {
	switch t.Kind {
	case KindInt64:
		b = appendMessage(b, typeInt64, nil)
	case KindDouble:
		b = appendMessage(b, typeDouble, nil)
	case KindMultiArray:
		var arr []byte
		arr = appendPackedInt64s(arr, arrayShape, t.Shape)
		arr = appendVarint(arr, arrayDataType, uint64(t.DataType))
		b = appendMessage(b, typeMultiArray, arr)
	}
	if t.Optional {
		b = appendVarint(b, typeIsOptional, 1)
	}
	return b
}

func appendPipeline(b []byte, p *Pipeline) []byte {
	for _, stage := range p.Models {
		b = appendMessage(b, pipelineModels, appendModel(nil, stage))
	}
	for _, name := range p.Names {
		b = protowire.AppendTag(b, pipelineNames, protowire.BytesType)
		b = protowire.AppendString(b, name)
	}
	return b
}

func appendVectorizer(b []byte, fv *FeatureVectorizer) []byte {
	for _, in := range fv.Inputs {
		var col []byte
		col = appendString(col, inputColumnName, in.Column)
		col = appendVarint(col, inputColumnDimension, in.Dimensions)
		b = appendMessage(b, vectorizerInputList, col)
	}
	return b
}

func appendScaler(b []byte, s *Scaler) []byte {
	b = appendPackedDoubles(b, scalerShift, s.ShiftValue)
	return appendPackedDoubles(b, scalerScale, s.ScaleValue)
}

func appendGLM(b []byte, g *GLMRegressor) []byte {
	for _, row := range g.Weights {
		b = appendMessage(b, glmWeights, appendPackedDoubles(nil, doubleArrayValue, row))
	}
	b = appendPackedDoubles(b, glmOffset, g.Offset)
	return appendVarint(b, glmTransform, uint64(g.PostEvaluationTransform))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// appendString and appendVarint omit proto3 default values.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendPackedDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	if len(vs) == 0 {
		return b
	}
	packed := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	return appendMessage(b, num, packed)
}

func appendPackedInt64s(b []byte, num protowire.Number, vs []int64) []byte {
	if len(vs) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	return appendMessage(b, num, packed)
}
