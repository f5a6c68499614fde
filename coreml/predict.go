package coreml

import (
	"fmt"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// Predict evaluates the model on named scalar inputs and returns every
// top-level output by name. Extra inputs are ignored.
func (m *Model) Predict(inputs map[string]float64) (out map[string]float64, err error) {
	defer errors.Recover(&err, "coreml.Predict")

	if err := m.Validate(); err != nil {
		return nil, err
	}

	env := make(map[string][]float64, len(inputs)+4)
	for _, in := range m.Description.Inputs {
		v, ok := inputs[in.Name]
		if !ok {
			return nil, errors.NewValueError("coreml.Predict", fmt.Sprintf("missing input feature %q", in.Name))
		}
		env[in.Name] = []float64{v}
	}

	if err := m.eval(env); err != nil {
		return nil, err
	}

	out = make(map[string]float64, len(m.Description.Outputs))
	for _, o := range m.Description.Outputs {
		vals, ok := env[o.Name]
		if !ok || len(vals) != 1 {
			return nil, stageError("output %q was not produced as a scalar", o.Name)
		}
		out[o.Name] = vals[0]
	}
	return out, nil
}

func stageError(format string, args ...interface{}) error {
	return errors.NewSerializationError("coreml.Predict", fmt.Sprintf(format, args...), nil)
}

func (m *Model) eval(env map[string][]float64) error {
	switch {
	case m.PipelineRegressor != nil:
		for _, stage := range m.PipelineRegressor.Models {
			if err := stage.eval(env); err != nil {
				return err
			}
		}
		return nil

	case m.FeatureVectorizer != nil:
		var vec []float64
		for _, in := range m.FeatureVectorizer.Inputs {
			vals, ok := env[in.Column]
			if !ok {
				return stageError("feature vectorizer: input %q not available", in.Column)
			}
			if uint64(len(vals)) != in.Dimensions {
				return stageError("feature vectorizer: input %q has %d values, declared %d", in.Column, len(vals), in.Dimensions)
			}
			vec = append(vec, vals...)
		}
		env[m.Description.Outputs[0].Name] = vec
		return nil

	case m.Scaler != nil:
		x, err := stageInput(m, env)
		if err != nil {
			return err
		}
		shift, err := broadcast(m.Scaler.ShiftValue, len(x), 0, "shiftValue")
		if err != nil {
			return err
		}
		scale, err := broadcast(m.Scaler.ScaleValue, len(x), 1, "scaleValue")
		if err != nil {
			return err
		}
		y := make([]float64, len(x))
		for j := range x {
			y[j] = (x[j] + shift[j]) * scale[j]
		}
		env[m.Description.Outputs[0].Name] = y
		return nil

	case m.GLMRegressor != nil:
		x, err := stageInput(m, env)
		if err != nil {
			return err
		}
		g := m.GLMRegressor
		if g.PostEvaluationTransform != NoTransform {
			return stageError("glm regressor: unsupported post evaluation transform %d", g.PostEvaluationTransform)
		}
		if len(g.Weights) == 0 {
			return stageError("glm regressor: no weights")
		}
		offset, err := broadcast(g.Offset, len(g.Weights), 0, "offset")
		if err != nil {
			return err
		}
		y := make([]float64, len(g.Weights))
		for k, w := range g.Weights {
			if len(w) != len(x) {
				return stageError("glm regressor: %d weights for %d inputs", len(w), len(x))
			}
			y[k] = offset[k]
			for j := range x {
				y[k] += w[j] * x[j]
			}
		}
		env[m.Description.Outputs[0].Name] = y
		return nil
	}
	return stageError("unsupported model type")
}

func stageInput(m *Model, env map[string][]float64) ([]float64, error) {
	name := m.Description.Inputs[0].Name
	x, ok := env[name]
	if !ok {
		return nil, stageError("%s: input %q not available", m.Type(), name)
	}
	return x, nil
}

// broadcast expands an empty or single-valued parameter to n values.
func broadcast(vs []float64, n int, fill float64, name string) ([]float64, error) {
	switch len(vs) {
	case n:
		return vs, nil
	case 0, 1:
		if len(vs) == 1 {
			fill = vs[0]
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = fill
		}
		return out, nil
	default:
		return nil, stageError("%s has %d values for %d inputs", name, len(vs), n)
	}
}
