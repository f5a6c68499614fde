package coreml

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// maxDepth bounds pipeline nesting in decoded artifacts.
const maxDepth = 8

// Unmarshal decodes Core ML protobuf bytes. Unknown fields are skipped;
// model types other than the four stages used here are rejected.
func Unmarshal(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.NewSerializationError("coreml.Unmarshal", "empty artifact", nil)
	}

	var m *Model
	err := errors.SafeExecute("coreml.Unmarshal", func() (err error) {
		m, err = decodeModel(data, 0)
		return err
	})
	if err != nil {
		return nil, errors.NewSerializationError("coreml.Unmarshal", "malformed model", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// field is one decoded tag/value pair. u holds varint and fixed values, b
// holds length-delimited payloads.
type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("field %d: wire type %d, want %d", f.num, f.typ, typ)
	}
	return nil
}

// appendDoubles accepts both packed and unpacked encodings.
func (f field) appendDoubles(dst []float64) ([]float64, error) {
	switch f.typ {
	case protowire.Fixed64Type:
		return append(dst, math.Float64frombits(f.u)), nil
	case protowire.BytesType:
		b := f.b
		for len(b) > 0 {
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			dst = append(dst, math.Float64frombits(v))
			b = b[n:]
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("field %d: wire type %d is not a double", f.num, f.typ)
	}
}

func (f field) appendInt64s(dst []int64) ([]int64, error) {
	switch f.typ {
	case protowire.VarintType:
		return append(dst, int64(f.u)), nil
	case protowire.BytesType:
		b := f.b
		for len(b) > 0 {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			dst = append(dst, int64(v))
			b = b[n:]
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("field %d: wire type %d is not an int64", f.num, f.typ)
	}
}

func decodeModel(b []byte, depth int) (*Model, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("pipeline nested deeper than %d", maxDepth)
	}

	m := &Model{}
	var types int
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case fieldSpecificationVersion:
			if err = f.expect(protowire.VarintType); err == nil {
				m.SpecificationVersion = int32(f.u)
			}
		case fieldDescription:
			if err = f.expect(protowire.BytesType); err == nil {
				err = decodeDescription(f.b, &m.Description)
			}
		case fieldIsUpdatable:
		case fieldPipelineRegressor:
			types++
			if err = f.expect(protowire.BytesType); err == nil {
				m.PipelineRegressor, err = decodePipelineRegressor(f.b, depth)
			}
		case fieldGLMRegressor:
			types++
			if err = f.expect(protowire.BytesType); err == nil {
				m.GLMRegressor, err = decodeGLM(f.b)
			}
		case fieldFeatureVectorizer:
			types++
			if err = f.expect(protowire.BytesType); err == nil {
				m.FeatureVectorizer, err = decodeVectorizer(f.b)
			}
		case fieldScaler:
			types++
			if err = f.expect(protowire.BytesType); err == nil {
				m.Scaler, err = decodeScaler(f.b)
			}
		default:
			if f.num >= firstTypeField {
				return fmt.Errorf("unsupported model type (field %d)", f.num)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if types > 1 {
		return nil, fmt.Errorf("model sets %d types", types)
	}
	return m, nil
}

func decodeDescription(b []byte, d *Description) error {
	return walk(b, func(f field) error {
		switch f.num {
		case descInput, descOutput:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			var fd FeatureDescription
			if err := decodeFeature(f.b, &fd); err != nil {
				return err
			}
			if f.num == descInput {
				d.Inputs = append(d.Inputs, fd)
			} else {
				d.Outputs = append(d.Outputs, fd)
			}
		case descPredictedFeatureName:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			d.PredictedFeatureName = string(f.b)
		case descMetadata:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			return decodeMetadata(f.b, &d.Metadata)
		}
		return nil
	})
}

func decodeMetadata(b []byte, md *Metadata) error {
	return walk(b, func(f field) error {
		if f.num != metaUserDefined && f.num > metaLicense {
			return nil
		}
		if err := f.expect(protowire.BytesType); err != nil {
			return err
		}
		switch f.num {
		case metaShortDescription:
			md.ShortDescription = string(f.b)
		case metaVersionString:
			md.VersionString = string(f.b)
		case metaAuthor:
			md.Author = string(f.b)
		case metaLicense:
			md.License = string(f.b)
		case metaUserDefined:
			var key, value string
			err := walk(f.b, func(e field) error {
				if err := e.expect(protowire.BytesType); err != nil {
					return err
				}
				switch e.num {
				case mapKey:
					key = string(e.b)
				case mapValue:
					value = string(e.b)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if md.UserDefined == nil {
				md.UserDefined = make(map[string]string)
			}
			md.UserDefined[key] = value
		}
		return nil
	})
}

func decodeFeature(b []byte, fd *FeatureDescription) error {
	return walk(b, func(f field) error {
		switch f.num {
		case featName, featShortDescription, featType:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
		default:
			return nil
		}
		switch f.num {
		case featName:
			fd.Name = string(f.b)
		case featShortDescription:
			fd.ShortDescription = string(f.b)
		case featType:
			return decodeFeatureType(f.b, &fd.Type)
		}
		return nil
	})
}

func decodeFeatureType(b []byte, t *FeatureType) error {
	return walk(b, func(f field) error {
		switch f.num {
		case typeInt64:
			t.Kind = KindInt64
		case typeDouble:
			t.Kind = KindDouble
		case typeMultiArray:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			t.Kind = KindMultiArray
			return walk(f.b, func(a field) error {
				var err error
				switch a.num {
				case arrayShape:
					t.Shape, err = a.appendInt64s(t.Shape)
				case arrayDataType:
					if err = a.expect(protowire.VarintType); err == nil {
						t.DataType = ArrayDataType(int32(a.u))
					}
				}
				return err
			})
		case typeIsOptional:
			if err := f.expect(protowire.VarintType); err != nil {
				return err
			}
			t.Optional = f.u != 0
		default:
			if f.num < typeIsOptional {
				return fmt.Errorf("unsupported feature type (field %d)", f.num)
			}
		}
		return nil
	})
}

func decodePipelineRegressor(b []byte, depth int) (*Pipeline, error) {
	p := &Pipeline{}
	err := walk(b, func(f field) error {
		if f.num != pipelineRegressorPipeline {
			return nil
		}
		if err := f.expect(protowire.BytesType); err != nil {
			return err
		}
		return walk(f.b, func(s field) error {
			switch s.num {
			case pipelineModels:
				if err := s.expect(protowire.BytesType); err != nil {
					return err
				}
				stage, err := decodeModel(s.b, depth+1)
				if err != nil {
					return err
				}
				p.Models = append(p.Models, stage)
			case pipelineNames:
				if err := s.expect(protowire.BytesType); err != nil {
					return err
				}
				p.Names = append(p.Names, string(s.b))
			}
			return nil
		})
	})
	return p, err
}

func decodeVectorizer(b []byte) (*FeatureVectorizer, error) {
	fv := &FeatureVectorizer{}
	err := walk(b, func(f field) error {
		if f.num != vectorizerInputList {
			return nil
		}
		if err := f.expect(protowire.BytesType); err != nil {
			return err
		}
		var in VectorizerInput
		err := walk(f.b, func(c field) error {
			switch c.num {
			case inputColumnName:
				if err := c.expect(protowire.BytesType); err != nil {
					return err
				}
				in.Column = string(c.b)
			case inputColumnDimension:
				if err := c.expect(protowire.VarintType); err != nil {
					return err
				}
				in.Dimensions = c.u
			}
			return nil
		})
		if err != nil {
			return err
		}
		fv.Inputs = append(fv.Inputs, in)
		return nil
	})
	return fv, err
}

func decodeScaler(b []byte) (*Scaler, error) {
	s := &Scaler{}
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case scalerShift:
			s.ShiftValue, err = f.appendDoubles(s.ShiftValue)
		case scalerScale:
			s.ScaleValue, err = f.appendDoubles(s.ScaleValue)
		}
		return err
	})
	return s, err
}

func decodeGLM(b []byte) (*GLMRegressor, error) {
	g := &GLMRegressor{}
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case glmWeights:
			if err = f.expect(protowire.BytesType); err != nil {
				return err
			}
			var row []float64
			err = walk(f.b, func(v field) error {
				if v.num != doubleArrayValue {
					return nil
				}
				var err error
				row, err = v.appendDoubles(row)
				return err
			})
			g.Weights = append(g.Weights, row)
		case glmOffset:
			g.Offset, err = f.appendDoubles(g.Offset)
		case glmTransform:
			if err = f.expect(protowire.VarintType); err == nil {
				g.PostEvaluationTransform = PostEvaluationTransform(int32(f.u))
			}
		}
		return err
	})
	return g, err
}
