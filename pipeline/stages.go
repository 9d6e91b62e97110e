package pipeline

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/feature"
	"github.com/YuminosukeSato/taxitip/metrics"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
	"github.com/YuminosukeSato/taxitip/viz"
)

// transform indexes and binarizes the payment type, bucketizes the pickup
// hour and drops rows with a missing numeric formula column.
func (r *runner) transform(context.Context) error {
	fc := r.cfg.Features

	indexer := &feature.StringIndexer{
		InputCol:      fc.Indexer.Input,
		OutputCol:     fc.Indexer.Output,
		HandleInvalid: fc.Indexer.HandleInvalid,
	}
	im, err := indexer.Fit(r.data)
	if err != nil {
		return err
	}
	t, err := im.Transform(r.data)
	if err != nil {
		return err
	}
	r.logger.Debug("Payment type indexed", log.ColumnKey, fc.Indexer.Output, "labels", im.Labels)

	bin := &feature.Binarizer{
		InputCol:  fc.Indexer.Output,
		OutputCol: fc.Binarizer.Output,
		Threshold: fc.Binarizer.Threshold,
	}
	if t, err = bin.Transform(t); err != nil {
		return err
	}

	bucket := &feature.Bucketizer{
		InputCol:      fc.Bucketizer.Input,
		OutputCol:     fc.Bucketizer.Output,
		Splits:        fc.Bucketizer.Splits,
		HandleInvalid: fc.Bucketizer.HandleInvalid,
	}
	if t, err = bucket.Transform(t); err != nil {
		return err
	}

	f, err := feature.ParseFormula(fc.Formula)
	if err != nil {
		return err
	}
	// unseen test levels encode as all zeros
	f.HandleInvalid = feature.HandleKeep
	cols, err := f.Columns(t)
	if err != nil {
		return err
	}
	numeric := []string{f.Response}
	for _, c := range cols {
		if !t.IsString(c) {
			numeric = append(numeric, c)
		}
	}
	before := t.Nrow()
	if t, err = t.DropNaN(numeric...); err != nil {
		return err
	}
	if dropped := before - t.Nrow(); dropped > 0 {
		r.logger.Warn("Dropped rows with missing values", "dropped", dropped, log.SamplesKey, t.Nrow())
	}

	r.data = t
	r.parsed = f
	r.logger.Info("Features transformed",
		log.PhaseKey, log.PhasePreprocessing,
		log.OperationKey, log.OperationTransform,
		log.SamplesKey, t.Nrow(),
	)
	return nil
}

// split partitions the table and encodes both partitions with the formula
// fitted on the training rows.
func (r *runner) split(context.Context) error {
	sc := r.cfg.Split
	parts, err := r.data.RandomSplit([]float64{sc.Training, sc.Test}, sc.Seed)
	if err != nil {
		return err
	}
	r.train, r.test = parts[0], parts[1]
	r.report.TrainingRows = r.train.Nrow()
	r.report.TestRows = r.test.Nrow()
	if r.train.Nrow() == 0 || r.test.Nrow() == 0 {
		return errors.NewModelError("pipeline.split", "empty partition", errors.ErrEmptyData)
	}

	fm, err := r.parsed.Fit(r.train)
	if err != nil {
		return err
	}
	r.formula = fm
	if r.trainX, err = fm.Design(r.train); err != nil {
		return err
	}
	if r.testX, err = fm.Design(r.test); err != nil {
		return err
	}
	r.report.Features = fm.Features

	r.logger.Info("Data split",
		log.RandomSeedKey, sc.Seed,
		"training_rows", r.train.Nrow(),
		"test_rows", r.test.Nrow(),
		log.FeaturesKey, len(fm.Features),
	)
	return nil
}

// runModel fits reg on the training design, evaluates it on the test rows and
// appends its ModelReport. The report is recorded also when the block fails.
func (r *runner) runModel(ctx context.Context, stage string, reg model.Regressor) (err error) {
	start := time.Now()
	mr := ModelReport{
		Stage:    stage,
		Name:     reg.Name(),
		Features: r.trainX.Features,
		TestRows: r.test.Nrow(),
	}
	defer func() {
		mr.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			mr.Error = err.Error()
		}
		r.report.Models = append(r.report.Models, mr)
	}()

	logger := r.logger.With(log.StageKey, stage, log.ModelNameKey, reg.Name())

	if err := model.FitWithContext(ctx, reg, r.trainX.X, r.trainX.Y); err != nil {
		return err
	}
	logger.Debug("Model fitted",
		log.PhaseKey, log.PhaseTraining,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r.train.Nrow(),
	)
	summary := reg.Summary().WithFeatures(r.trainX.Features)
	mr.Summary = summary
	mr.Hyperparameters = summary.Hyperparameters

	pred, err := reg.Predict(r.testX.X)
	if err != nil {
		return err
	}
	yPred, err := metrics.Column(pred)
	if err != nil {
		return err
	}
	yTrue := mat.Col(nil, 0, r.testX.Y)
	if mr.RMSE, err = metrics.RMSE(yTrue, yPred); err != nil {
		return err
	}
	if mr.MAE, err = metrics.MAE(yTrue, yPred); err != nil {
		return err
	}
	if mr.TestR2, err = metrics.R2Score(yTrue, yPred); err != nil {
		return err
	}

	actual, predicted, err := r.sample(yPred)
	if err != nil {
		return err
	}
	mr.SampleSize = len(actual)
	r2, err := metrics.PearsonR2(actual, predicted)
	var verr *errors.ValueError
	switch {
	case err == nil:
		mr.R2 = &r2
	case errors.As(err, &verr):
		// a constant prediction has no correlation; R² stays absent
		logger.Warn("R² undefined on sample", log.ErrorKey, err.Error(), "sample_size", mr.SampleSize)
	default:
		return err
	}

	scatter := r.plotPath(stage, "scatter")
	if err := viz.Scatter(scatter, reg.Name()+": actual vs predicted tip", actual, predicted); err != nil {
		return err
	}
	mr.Plots = append(mr.Plots, scatter)

	if fi, ok := reg.(model.FeatureImportancer); ok {
		imp, err := fi.FeatureImportances()
		if err != nil {
			return err
		}
		mr.Importances = imp
		path := r.plotPath(stage, "importances")
		if err := viz.Importances(path, reg.Name()+": feature importances", r.trainX.Features, imp); err != nil {
			return err
		}
		mr.Plots = append(mr.Plots, path)
	}
	if lm, ok := reg.(model.LinearModel); ok {
		mr.Coefficients = lm.Coefficients()
		b := lm.Intercept()
		mr.Intercept = &b
	}

	if r.cfg.Output.SaveModels {
		path := r.modelPath(stage)
		if err := model.SaveModel(reg, path); err != nil {
			return err
		}
		mr.ModelPath = path
	}

	logger.Info("Model evaluated",
		log.PhaseKey, log.PhaseTesting,
		log.HyperParamsKey, mr.Hyperparameters,
		log.R2ScoreKey, mr.R2,
		"test_r2", mr.TestR2,
		log.RMSEKey, mr.RMSE,
		"sample_size", mr.SampleSize,
	)
	return nil
}

// sample attaches the predictions to the test rows and draws the local
// sample the R² and the scatter plot are computed on. A sample with fewer
// than two rows falls back to the first rows of the test partition.
func (r *runner) sample(yPred []float64) (actual, predicted []float64, err error) {
	ev := r.cfg.Evaluation
	withPred, err := r.test.WithFloatColumn(PredictionCol, yPred)
	if err != nil {
		return nil, nil, err
	}
	s, err := withPred.Sample(ev.SampleFraction, ev.Seed, ev.MaxRows)
	if err != nil {
		return nil, nil, err
	}
	if s.Nrow() < 2 {
		n := withPred.Nrow()
		if ev.MaxRows > 0 && ev.MaxRows < n {
			n = ev.MaxRows
		}
		s = withPred.Head(n)
	}
	if actual, err = s.Float(r.parsed.Response); err != nil {
		return nil, nil, err
	}
	if predicted, err = s.Float(PredictionCol); err != nil {
		return nil, nil, err
	}
	return actual, predicted, nil
}
