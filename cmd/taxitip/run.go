package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/subcommands"

	"github.com/YuminosukeSato/taxitip/pipeline"
)

type runCmd struct {
	jobFlags
	out      string
	progress bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "train, evaluate and plot the tip models" }
func (*runCmd) Usage() string {
	return `run -config job.yaml [-mode local|spark] [-data path] [-out dir] [-loglevel level] [-progress]:
  Load and cache the trips, fit the elastic net, random forest and GBT models,
  and write plots and report.json into the output directory.
`
}

func (c *runCmd) SetFlags(fs *flag.FlagSet) {
	c.register(fs)
	fs.StringVar(&c.out, "out", "", "output directory for plots, models and report.json")
	fs.BoolVar(&c.progress, "progress", true, "show a progress bar over the stages when stderr is a terminal")
}

func (c *runCmd) Execute(ctx context.Context, fs *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.load()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if c.out != "" {
		cfg.Output.Dir = c.out
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	sess, err := connect(ctx, cfg)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	var opts []pipeline.Option
	var bar *pb.ProgressBar
	if c.progress && isTerminal(os.Stderr) {
		bar = pb.New(len(pipeline.Stages))
		bar.SetWriter(os.Stderr)
		bar.SetTemplateString(`{{string . "prefix"}} {{counters . }} {{bar . }} {{etime . }}`)
		bar.Start()
		opts = append(opts, pipeline.WithStageHook(func(stage string, index, total int) {
			bar.Set("prefix", fmt.Sprintf("%-14s", stage))
			bar.SetCurrent(int64(index))
		}))
	}

	rep, err := pipeline.Run(ctx, cfg, sess, opts...)
	if bar != nil {
		bar.SetCurrent(int64(len(pipeline.Stages)))
		bar.Finish()
	}
	if rep != nil {
		printReport(rep)
	}
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printReport(rep *pipeline.Report) {
	fmt.Printf("rows %d (training %d, test %d), features %d\n",
		rep.Rows, rep.TrainingRows, rep.TestRows, len(rep.Features))
	for _, m := range rep.Models {
		if m.Error != "" {
			fmt.Printf("%-14s %-22s failed: %s\n", m.Stage, m.Name, m.Error)
			continue
		}
		r2 := "n/a"
		if m.R2 != nil {
			r2 = fmt.Sprintf("%.4f", *m.R2)
		}
		fmt.Printf("%-14s %-22s r2 %-6s  test_r2 %.4f  rmse %.4f  sample %d\n",
			m.Stage, m.Name, r2, m.TestR2, m.RMSE, m.SampleSize)
	}
}
