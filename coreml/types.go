// Package coreml writes, reads and evaluates the subset of the Core ML model
// format needed for a scaled linear regression: a PipelineRegressor made of a
// FeatureVectorizer, a Scaler and a GLMRegressor.
//
// Messages are encoded field by field with protowire, following the field
// numbers of Apple's Model.proto, so the output opens in Xcode and coremltools.
package coreml

import (
	"fmt"
	"strings"
)

// SpecificationVersion is the Core ML specification version written by this
// package. Every stage used here exists since version 1.
const SpecificationVersion = 1

// Intermediate feature names inside the exported pipeline.
const (
	FeatureVectorName = "__feature_vector__"
	ScaledVectorName  = "__scaled_feature_vector__"
)

// DefaultFileName is the artifact name used when none is configured.
const DefaultFileName = "LidarMLModel.mlmodel"

// FeatureKind selects the FeatureType oneof.
type FeatureKind int

const (
	KindUnknown    FeatureKind = 0
	KindInt64      FeatureKind = 1
	KindDouble     FeatureKind = 2
	KindMultiArray FeatureKind = 5
)

func (k FeatureKind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindMultiArray:
		return "multiArray"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ArrayDataType is ArrayFeatureType.ArrayDataType.
type ArrayDataType int32

const (
	ArrayInvalid ArrayDataType = 0
	ArrayFloat32 ArrayDataType = 0x10000 | 32
	ArrayDouble  ArrayDataType = 0x10000 | 64
	ArrayInt32   ArrayDataType = 0x20000 | 32
)

func (t ArrayDataType) String() string {
	switch t {
	case ArrayFloat32:
		return "FLOAT32"
	case ArrayDouble:
		return "DOUBLE"
	case ArrayInt32:
		return "INT32"
	default:
		return fmt.Sprintf("dtype(%d)", int32(t))
	}
}

// FeatureType describes the value carried by a named feature.
type FeatureType struct {
	Kind     FeatureKind
	Shape    []int64
	DataType ArrayDataType
	Optional bool
}

// DoubleType is a scalar double feature.
func DoubleType() FeatureType {
	return FeatureType{Kind: KindDouble}
}

// MultiArrayType is a dense array feature.
func MultiArrayType(shape []int64, dtype ArrayDataType) FeatureType {
	return FeatureType{Kind: KindMultiArray, Shape: append([]int64(nil), shape...), DataType: dtype}
}

func (t FeatureType) String() string {
	if t.Kind != KindMultiArray {
		return t.Kind.String()
	}
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("multiArray[%s] %s", strings.Join(dims, "x"), t.DataType)
}

// FeatureDescription names one input or output.
type FeatureDescription struct {
	Name             string
	ShortDescription string
	Type             FeatureType
}

// Metadata is free-form model information shown by Xcode.
type Metadata struct {
	ShortDescription string
	VersionString    string
	Author           string
	License          string
	UserDefined      map[string]string
}

// Description is the interface of a model or pipeline stage.
type Description struct {
	Inputs               []FeatureDescription
	Outputs              []FeatureDescription
	PredictedFeatureName string
	Metadata             Metadata
}

// Model is a Core ML model. Exactly one of the type fields is set.
type Model struct {
	SpecificationVersion int32
	Description          Description

	PipelineRegressor *Pipeline
	FeatureVectorizer *FeatureVectorizer
	Scaler            *Scaler
	GLMRegressor      *GLMRegressor
}

// Type returns the name of the model's type, as in Model.proto.
func (m *Model) Type() string {
	switch {
	case m.PipelineRegressor != nil:
		return "pipelineRegressor"
	case m.FeatureVectorizer != nil:
		return "featureVectorizer"
	case m.Scaler != nil:
		return "scaler"
	case m.GLMRegressor != nil:
		return "glmRegressor"
	default:
		return ""
	}
}

// Pipeline is an ordered list of stages. Names is optional.
type Pipeline struct {
	Models []*Model
	Names  []string
}

// VectorizerInput is FeatureVectorizer.InputColumn.
type VectorizerInput struct {
	Column     string
	Dimensions uint64
}

// FeatureVectorizer concatenates named inputs into one array.
type FeatureVectorizer struct {
	Inputs []VectorizerInput
}

// Scaler computes (x + ShiftValue) * ScaleValue element-wise. An empty slice
// means no shift (or unit scale); a single value is broadcast.
type Scaler struct {
	ShiftValue []float64
	ScaleValue []float64
}

// PostEvaluationTransform is GLMRegressor.PostEvaluationTransform.
type PostEvaluationTransform int32

const (
	NoTransform PostEvaluationTransform = 0
	Logit       PostEvaluationTransform = 1
	Probit      PostEvaluationTransform = 2
)

// GLMRegressor computes Weights[k]·x + Offset[k] for each output k.
type GLMRegressor struct {
	Weights                 [][]float64
	Offset                  []float64
	PostEvaluationTransform PostEvaluationTransform
}
