package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/YuminosukeSato/taxitip/config"
	"github.com/YuminosukeSato/taxitip/pkg/log"
	"github.com/YuminosukeSato/taxitip/session"
)

// jobFlags are the flags shared by run and schema. Non-empty values override
// the configuration file.
type jobFlags struct {
	configPath string
	mode       string
	data       string
	logLevel   string
}

func (f *jobFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "path to the YAML job configuration")
	fs.StringVar(&f.mode, "mode", "", "session mode: local or spark")
	fs.StringVar(&f.data, "data", "", "dataset path (local, file:// or hdfs://)")
	fs.StringVar(&f.logLevel, "loglevel", "", "log level: debug, info, warn or error")
}

// load reads the configuration, applies the flag overrides and installs the
// logger.
func (f *jobFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.mode != "" {
		cfg.Connection.Mode = f.mode
	}
	if f.data != "" {
		cfg.Dataset.Path = f.data
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := log.SetupLogger(cfg.LogLevel, os.Stderr, isTerminal(os.Stderr)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func connect(ctx context.Context, cfg *config.Config) (session.Session, error) {
	return session.Connect(ctx, session.Options{
		Mode:     cfg.Connection.Mode,
		Remote:   cfg.Connection.Remote,
		Namenode: cfg.Connection.Namenode,
		User:     cfg.Connection.User,
	})
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "taxitip: %v\n", err)
}
