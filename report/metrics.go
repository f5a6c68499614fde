// Package report writes the artifacts that describe a finished training
// run: a Prometheus textfile with the holdout scores and a diagnostics plot.
package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/lidarml/metrics"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

const namespace = "lidarml"

// RunMetrics is what a run exposes to the node exporter textfile collector.
type RunMetrics struct {
	RunID        string
	Scores       metrics.RegressionScores
	NTrain       int
	NTest        int
	NDropped     int
	Duration     time.Duration
	FeatureNames []string
	Coef         []float64
	Intercept    float64
	FinishedAt   time.Time
}

// NewRegistry returns a registry holding the gauges for one run. A private
// registry keeps repeated runs in one process from colliding.
func NewRegistry(m RunMetrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	gauge := func(name, help string, v float64) error {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
		g.Set(v)
		return reg.Register(g)
	}

	for _, s := range []struct {
		name, help string
		v          float64
	}{
		{"holdout_r2", "Coefficient of determination on the test split.", m.Scores.R2},
		{"holdout_mse", "Mean squared error on the test split.", m.Scores.MSE},
		{"holdout_rmse", "Root mean squared error on the test split.", m.Scores.RMSE},
		{"holdout_mae", "Mean absolute error on the test split.", m.Scores.MAE},
		{"train_duration_seconds", "Wall time of the training run.", m.Duration.Seconds()},
		{"intercept", "Fitted intercept in scaled feature space.", m.Intercept},
		{"last_run_timestamp_seconds", "Unix time the run finished.", float64(m.FinishedAt.Unix())},
	} {
		if err := gauge(s.name, s.help, s.v); err != nil {
			return nil, errors.Wrapf(err, "register %s", s.name)
		}
	}

	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rows",
		Help:      "Rows per dataset partition.",
	}, []string{"set"})
	rows.WithLabelValues("train").Set(float64(m.NTrain))
	rows.WithLabelValues("test").Set(float64(m.NTest))
	rows.WithLabelValues("dropped").Set(float64(m.NDropped))

	coef := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "coefficient",
		Help:      "Fitted coefficient per scaled feature.",
	}, []string{"feature"})
	for j, w := range m.Coef {
		if j < len(m.FeatureNames) {
			coef.WithLabelValues(m.FeatureNames[j]).Set(w)
		}
	}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_info",
		Help:      "Identifier of the last run. Always 1.",
	}, []string{"run_id"})
	info.WithLabelValues(m.RunID).Set(1)

	for _, c := range []prometheus.Collector{rows, coef, info} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register collector")
		}
	}
	return reg, nil
}

// WriteMetrics writes the run gauges to path in the text exposition format.
func WriteMetrics(path string, m RunMetrics) error {
	reg, err := NewRegistry(m)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return errors.Wrapf(err, "write metrics %s", path)
	}
	return nil
}
