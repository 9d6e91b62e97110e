package linear

// Option is a function that configures ElasticNet
type Option func(*ElasticNet)

// WithRegParam sets the overall regularization strength λ.
func WithRegParam(lambda float64) Option {
	return func(en *ElasticNet) {
		en.RegParam = lambda
	}
}

// WithElasticNetParam sets the L1/L2 mixing parameter α. 0 is ridge, 1 is lasso.
func WithElasticNetParam(alpha float64) Option {
	return func(en *ElasticNet) {
		en.ElasticNetParam = alpha
	}
}

// WithMaxIter sets the maximum number of coordinate descent sweeps.
func WithMaxIter(n int) Option {
	return func(en *ElasticNet) {
		en.MaxIter = n
	}
}

// WithTol sets the tolerance on the largest coefficient change per sweep.
func WithTol(tol float64) Option {
	return func(en *ElasticNet) {
		en.Tol = tol
	}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(en *ElasticNet) {
		en.FitIntercept = fit
	}
}

// WithStandardization sets whether features are scaled to unit variance before fitting.
// Coefficients are always reported on the original scale.
func WithStandardization(standardize bool) Option {
	return func(en *ElasticNet) {
		en.Standardization = standardize
	}
}
