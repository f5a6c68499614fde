package coreml

import (
	"fmt"
	"sort"
	"strings"
)

// Summary renders the model interface, metadata and stage parameters.
func (m *Model) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Core ML model (specification version %d)\n", m.SpecificationVersion)
	fmt.Fprintf(&b, "  type: %s\n", m.Type())

	md := m.Description.Metadata
	for _, kv := range [][2]string{
		{"description", md.ShortDescription},
		{"version", md.VersionString},
		{"author", md.Author},
		{"license", md.License},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, "  %s: %s\n", kv[0], kv[1])
		}
	}

	b.WriteString("  inputs:\n")
	writeFeatures(&b, m.Description.Inputs)
	b.WriteString("  outputs:\n")
	writeFeatures(&b, m.Description.Outputs)
	if name := m.Description.PredictedFeatureName; name != "" {
		fmt.Fprintf(&b, "  predicted feature: %s\n", name)
	}

	if m.PipelineRegressor != nil {
		b.WriteString("  stages:\n")
		for i, stage := range m.PipelineRegressor.Models {
			name := stage.Type()
			if i < len(m.PipelineRegressor.Names) {
				name = m.PipelineRegressor.Names[i] + " (" + name + ")"
			}
			fmt.Fprintf(&b, "    [%d] %s: %s\n", i, name, stage.stageDetail())
		}
	} else {
		fmt.Fprintf(&b, "  %s\n", m.stageDetail())
	}

	if len(md.UserDefined) > 0 {
		b.WriteString("  user defined:\n")
		keys := make([]string, 0, len(md.UserDefined))
		for k := range md.UserDefined {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "    %s: %s\n", k, md.UserDefined[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeFeatures(b *strings.Builder, fs []FeatureDescription) {
	for _, f := range fs {
		fmt.Fprintf(b, "    %s (%s)", f.Name, f.Type)
		if f.ShortDescription != "" {
			fmt.Fprintf(b, " - %s", f.ShortDescription)
		}
		b.WriteString("\n")
	}
}

func (m *Model) stageDetail() string {
	ports := func() string {
		ins := make([]string, len(m.Description.Inputs))
		for i, f := range m.Description.Inputs {
			ins[i] = f.Name
		}
		outs := make([]string, len(m.Description.Outputs))
		for i, f := range m.Description.Outputs {
			outs[i] = f.Name
		}
		return strings.Join(ins, ", ") + " -> " + strings.Join(outs, ", ")
	}

	switch {
	case m.FeatureVectorizer != nil:
		if len(m.Description.Outputs) == 1 {
			return fmt.Sprintf("%s (%s)", ports(), m.Description.Outputs[0].Type)
		}
		return ports()
	case m.Scaler != nil:
		return fmt.Sprintf("%s shift=%s scale=%s", ports(), floats(m.Scaler.ShiftValue), floats(m.Scaler.ScaleValue))
	case m.GLMRegressor != nil:
		rows := make([]string, len(m.GLMRegressor.Weights))
		for i, w := range m.GLMRegressor.Weights {
			rows[i] = floats(w)
		}
		return fmt.Sprintf("%s weights=%s offset=%s", ports(), strings.Join(rows, ""), floats(m.GLMRegressor.Offset))
	case m.PipelineRegressor != nil:
		return fmt.Sprintf("%s (%d stages)", ports(), len(m.PipelineRegressor.Models))
	}
	return ports()
}

func floats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%.6g", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
