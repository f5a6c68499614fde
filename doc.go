// Package lidarml trains the Goal Score model of the LiDAR game and ships it
// to iOS as a Core ML pipeline.
//
// A run reads a CSV table with the columns Accuracy, Score and Goal Score,
// drops incomplete rows, holds out 20% of the rows with a seeded shuffle,
// standardizes the two features on the training rows, fits ordinary least
// squares on the standardized features and reports R² on the held-out rows.
// The fitted scaler and regressor are exported as a three stage Core ML
// pipeline (feature vectorizer, scaler, GLM regressor) to
// LidarMLModel.mlmodel, which is then reloaded and evaluated on a sample
// input to check that it reproduces the in-memory pipeline.
//
// # Quick Start
//
//	lidarml train --data accuracy_scores_100_rows.csv
//	lidarml predict --model LidarMLModel.mlmodel --input Accuracy=0.9,Score=0.8
//
// The same flow is available as a library:
//
//	cfg := config.Default()
//	rep, err := trainer.Run(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(rep.R2, rep.SamplePrediction)
//
// # Packages
//
//   - dataset: CSV loading with missing-value handling
//   - sklearn/model_selection: seeded train/test split
//   - preprocessing: StandardScaler
//   - linear: LinearRegression (QR with an SVD fallback)
//   - metrics: R², MSE, RMSE, MAE
//   - sklearn/pipeline: scaler followed by regressor
//   - coreml: Core ML model encoding, decoding and evaluation
//   - trainer: the end-to-end run
//   - config, registry, report: configuration, SQLite run history, plots and Prometheus metrics
//   - core/model, core/parallel, pkg/errors, pkg/log: shared infrastructure
package lidarml
