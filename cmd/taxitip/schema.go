package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/YuminosukeSato/taxitip/config"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/session"
)

type schemaCmd struct {
	jobFlags
}

func (*schemaCmd) Name() string     { return "schema" }
func (*schemaCmd) Synopsis() string { return "print the columns and row count of the dataset" }
func (*schemaCmd) Usage() string {
	return `schema -config job.yaml [-mode local|spark] [-data path]:
  Load the dataset through the configured session and print its schema.
`
}

func (c *schemaCmd) SetFlags(fs *flag.FlagSet) { c.register(fs) }

func (c *schemaCmd) Execute(ctx context.Context, fs *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.load()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	sess, err := connect(ctx, cfg)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if err := printSchema(ctx, os.Stdout, sess, cfg.Dataset); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// printSchema loads the dataset, writes one line per column and then
// uncaches the table and closes sess.
func printSchema(ctx context.Context, w io.Writer, sess session.Session, ds config.Dataset) (err error) {
	defer func() {
		if cerr := sess.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close session")
		}
	}()

	t, err := sess.Load(ctx, ds.Table, ds.Path, ds.Format)
	if err != nil {
		return err
	}
	types := t.Types()
	fmt.Fprintf(w, "%s: %d rows\n", t.Name, t.Nrow())
	for _, name := range t.Names() {
		fmt.Fprintf(w, "  %-20s %s\n", name, types[name])
	}
	return sess.Uncache(context.WithoutCancel(ctx), ds.Table)
}
