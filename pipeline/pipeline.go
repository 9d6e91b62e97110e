// Package pipeline runs the tip prediction job end to end: load and cache
// the trips, engineer the payment and pickup hour features, split, then fit
// and evaluate an elastic net, a random forest and a gradient-boosted tree
// model before uncaching and disconnecting.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/taxitip/config"
	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/ensemble"
	"github.com/YuminosukeSato/taxitip/feature"
	"github.com/YuminosukeSato/taxitip/frame"
	"github.com/YuminosukeSato/taxitip/linear"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
	"github.com/YuminosukeSato/taxitip/session"
)

// Stage names, in execution order.
const (
	StageLoad         = "load"
	StageTransform    = "transform"
	StageSplit        = "split"
	StageElasticNet   = "elastic_net"
	StageRandomForest = "random_forest"
	StageGBT          = "gbt"
	StageReport       = "report"
	StageTeardown     = "teardown"
)

// Stages lists every stage Run goes through.
var Stages = []string{
	StageLoad, StageTransform, StageSplit,
	StageElasticNet, StageRandomForest, StageGBT,
	StageReport, StageTeardown,
}

// PredictionCol is the column holding model predictions in sampled tables.
const PredictionCol = "prediction"

// Option configures Run.
type Option func(*runner)

// WithStageHook calls fn when a stage starts. index counts from 0.
func WithStageHook(fn func(stage string, index, total int)) Option {
	return func(r *runner) { r.onStage = fn }
}

type runner struct {
	cfg     *config.Config
	sess    session.Session
	logger  log.Logger
	onStage func(stage string, index, total int)
	stageNo int

	report  *Report
	loaded  bool
	data    *frame.Table
	train   *frame.Table
	test    *frame.Table
	trainX  *feature.Design
	testX   *feature.Design
	parsed  *feature.Formula
	formula *feature.FormulaModel
}

// Run executes the job on sess and writes report.json into cfg.Output.Dir.
// The session is always torn down, also when the configuration is invalid or
// a stage fails. The first error is returned together with whatever report
// was assembled. A failing model block does not stop the blocks after it.
func Run(ctx context.Context, cfg *config.Config, sess session.Session, opts ...Option) (rep *Report, err error) {
	r := &runner{
		cfg:    cfg,
		sess:   sess,
		logger: log.GetLoggerWithName("pipeline").With(log.ModeKey, sess.Mode()),
		report: &Report{
			StartedAt: time.Now(),
			Mode:      sess.Mode(),
			Dataset:   cfg.Dataset.Path,
			Table:     cfg.Dataset.Table,
			Formula:   cfg.Features.Formula,
			Seed:      cfg.Split.Seed,
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	defer func() {
		if terr := r.teardown(ctx); err == nil {
			err = terr
		}
		r.report.DurationMs = time.Since(r.report.StartedAt).Milliseconds()
		if err != nil {
			r.logger.Error("Pipeline failed", err)
		} else {
			r.logger.Info("Pipeline completed", log.DurationMsKey, r.report.DurationMs)
		}
	}()

	if err := cfg.Validate(); err != nil {
		return r.report, err
	}
	for _, st := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageLoad, r.load},
		{StageTransform, r.transform},
		{StageSplit, r.split},
	} {
		if err := r.stage(ctx, st.name, st.fn); err != nil {
			return r.report, err
		}
	}

	var firstErr error
	for _, b := range r.blocks() {
		err := r.stage(ctx, b.stage, func(ctx context.Context) error {
			return r.runModel(ctx, b.stage, b.reg)
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	if err := r.stage(ctx, StageReport, func(context.Context) error {
		path, err := r.report.Write(r.cfg.Output.Dir)
		if err == nil {
			r.logger.Info("Report written", log.PathKey, path)
		}
		return err
	}); err != nil && firstErr == nil {
		firstErr = err
	}
	return r.report, firstErr
}

type block struct {
	stage string
	reg   model.Regressor
}

// blocks builds the three regressors from the configuration.
func (r *runner) blocks() []block {
	en := r.cfg.Models.ElasticNet
	rf := r.cfg.Models.RandomForest
	g := r.cfg.Models.GBT
	return []block{
		{StageElasticNet, linear.NewElasticNet(
			linear.WithElasticNetParam(en.Alpha),
			linear.WithRegParam(en.Lambda),
			linear.WithMaxIter(en.MaxIter),
			linear.WithTol(en.Tol),
			linear.WithStandardization(en.Standardize),
		)},
		{StageRandomForest, ensemble.NewRandomForestRegressor(
			ensemble.WithNumTrees(rf.NumTrees),
			ensemble.WithForestMaxDepth(rf.MaxDepth),
			ensemble.WithForestMaxBins(rf.MaxBins),
			ensemble.WithForestMinInstancesPerNode(rf.MinInstancesPerNode),
			ensemble.WithForestSubsamplingRate(rf.SubsamplingRate),
			ensemble.WithFeatureSubsetStrategy(rf.FeatureSubsetStrategy),
			ensemble.WithForestSeed(rf.Seed),
			ensemble.WithWorkers(rf.Workers),
		)},
		{StageGBT, ensemble.NewGBTRegressor(
			ensemble.WithMaxIter(g.MaxIter),
			ensemble.WithGBTMaxDepth(g.MaxDepth),
			ensemble.WithGBTMaxBins(g.MaxBins),
			ensemble.WithGBTMinInstancesPerNode(g.MinInstancesPerNode),
			ensemble.WithStepSize(g.StepSize),
			ensemble.WithGBTSubsamplingRate(g.SubsamplingRate),
			ensemble.WithGBTSeed(g.Seed),
			ensemble.WithStallStop(g.StallRounds, g.StallTol),
		)},
	}
}

// stage runs fn as the named stage: the context is checked first, panics
// are recovered and the outcome is logged.
func (r *runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "stage %s", name)
	}
	r.notify(name)

	start := time.Now()
	err := errors.SafeExecute("pipeline."+name, func() error { return fn(ctx) })
	dur := time.Since(start).Milliseconds()
	if err != nil {
		r.logger.Error("Stage failed", err, log.StageKey, name, log.DurationMsKey, dur)
		return errors.Wrapf(err, "stage %s", name)
	}
	r.logger.Info("Stage completed", log.StageKey, name, log.DurationMsKey, dur)
	return nil
}

func (r *runner) notify(name string) {
	if r.onStage != nil {
		r.onStage(name, r.stageNo, len(Stages))
	}
	r.stageNo++
}

func (r *runner) load(ctx context.Context) error {
	ds := r.cfg.Dataset
	t, err := r.sess.Load(ctx, ds.Table, ds.Path, ds.Format)
	if err != nil {
		return err
	}
	r.loaded = true
	r.data = t
	r.report.Rows = t.Nrow()
	return nil
}

// teardown uncaches the table and closes the session. It runs with a
// context that is not cancelled so that cleanup happens after a cancel.
func (r *runner) teardown(ctx context.Context) error {
	r.notify(StageTeardown)
	ctx = context.WithoutCancel(ctx)

	var first error
	if r.loaded {
		if err := r.sess.Uncache(ctx, r.cfg.Dataset.Table); err != nil {
			first = errors.Wrapf(err, "uncache %s", r.cfg.Dataset.Table)
		}
	}
	if err := r.sess.Close(); err != nil && first == nil {
		first = errors.Wrap(err, "close session")
	}
	r.logger.Info("Session torn down", log.PhaseKey, log.PhaseTeardown, log.TableKey, r.cfg.Dataset.Table)
	return first
}

func (r *runner) modelPath(stage string) string {
	return filepath.Join(r.cfg.Output.Dir, "models", stage+".gob")
}

func (r *runner) plotPath(stage, kind string) string {
	return filepath.Join(r.cfg.Output.Dir, stage+"_"+kind+"."+r.cfg.Output.PlotFormat)
}
