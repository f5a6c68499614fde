package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithFeatureNames names the input columns in order. The names travel with
// exported weights.
func WithFeatureNames(names ...string) Option {
	return func(lr *LinearRegression) {
		lr.featureNames = append([]string(nil), names...)
	}
}

// WithTargetName names the predicted column.
func WithTargetName(name string) Option {
	return func(lr *LinearRegression) {
		lr.targetName = name
	}
}

// WithRcond sets the relative singular value cutoff used when the design
// matrix is rank deficient.
func WithRcond(rcond float64) Option {
	return func(lr *LinearRegression) {
		lr.rcond = rcond
	}
}
