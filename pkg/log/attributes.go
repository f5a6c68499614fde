// Package log defines standard attribute keys for machine learning operations.
//
// Using these keys consistently lets a training run be followed through the
// logs stage by stage: loading, splitting, scaling, fitting, exporting and
// verifying. Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples").

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "LinearRegression", "StandardScaler", "Pipeline"
	ModelNameKey = "model.name"

	// RunIDKey identifies one training run end to end.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "load", "split", "fit", "predict", "transform", "score", "export", "verify"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// DroppedKey counts rows discarded because a required field was missing.
	DroppedKey = "data.dropped"

	// TrainSamplesKey and TestSamplesKey record the split sizes.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"

	// DataPathKey is the input table location.
	DataPathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records R² coefficient of determination for regression.
	// Range (-∞, 1.0], with 1.0 being perfect prediction.
	R2ScoreKey = "metrics.r2_score"

	// MSEKey records the mean squared error on the held-out split.
	MSEKey = "metrics.mse"

	// MAEKey records the mean absolute error on the held-out split.
	MAEKey = "metrics.mae"
)

// Prediction and Artifact Context
const (
	// PredictionKey records a single predicted value.
	PredictionKey = "preds.value"

	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// ArtifactPathKey is the location an artifact was written to or read from.
	ArtifactPathKey = "artifact.path"

	// ArtifactFormatKey names the artifact encoding ("coreml", "gob", "json", "png", "prometheus").
	ArtifactFormatKey = "artifact.format"

	// ArtifactBytesKey is the size of a written artifact.
	ArtifactBytesKey = "artifact.bytes"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// TestSizeKey records the held-out fraction.
	TestSizeKey = "config.test_size"

	// ConfigVersionKey tracks configuration or model version.
	ConfigVersionKey = "config.version"
)

// Standard attribute values.
const (
	OperationLoad         = "load"
	OperationSplit        = "split"
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
	OperationExport       = "export"
	OperationVerify       = "verify"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
	PhaseExport        = "export"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorSingularMatrix    = "SINGULAR_MATRIX"
	ErrorSchema            = "SCHEMA_MISMATCH"
	ErrorSerialization     = "SERIALIZATION_FAILURE"
)
