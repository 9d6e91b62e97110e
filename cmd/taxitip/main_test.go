package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/taxitip/config"
	"github.com/YuminosukeSato/taxitip/frame"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/session"
)

func TestJobFlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset:\n  path: hdfs:///taxi\n"), 0o644))

	f := &jobFlags{configPath: path, mode: "spark", logLevel: "warn"}
	cfg, err := f.load()
	require.NoError(t, err)
	assert.Equal(t, "spark", cfg.Connection.Mode)
	assert.Equal(t, "hdfs:///taxi", cfg.Dataset.Path)
	assert.Equal(t, "warn", cfg.LogLevel)

	f = &jobFlags{configPath: path, data: "trips.csv"}
	cfg, err = f.load()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Connection.Mode)
	assert.Equal(t, "trips.csv", cfg.Dataset.Path)
}

func TestJobFlagsRejectBadLogLevel(t *testing.T) {
	f := &jobFlags{logLevel: "verbose"}
	_, err := f.load()
	assert.Error(t, err)
}

func TestPrintSchema(t *testing.T) {
	dir := t.TempDir()
	trips := []frame.TripRecord{
		{TripDistance: 1.2, PaymentType: "CRD", PickupHour: 8, PassengerCount: 1, FareAmount: 6.5, TipAmount: 1.3, TrafficTimeBins: "AMRush"},
		{TripDistance: 3.4, PaymentType: "CSH", PickupHour: 18, PassengerCount: 2, FareAmount: 12, TipAmount: 0, TrafficTimeBins: "PMRush"},
	}
	f, err := os.Create(filepath.Join(dir, "part-0.parquet"))
	require.NoError(t, err)
	require.NoError(t, frame.WriteParquet(f, trips))
	require.NoError(t, f.Close())

	sess := session.NewLocal(session.Options{})
	ds := config.Dataset{Path: dir, Format: session.FormatParquet, Table: "taxi"}

	var out bytes.Buffer
	require.NoError(t, printSchema(context.Background(), &out, sess, ds))
	assert.Contains(t, out.String(), "taxi: 2 rows")
	assert.Contains(t, out.String(), "payment_type")
	assert.Contains(t, out.String(), "TrafficTimeBins")

	_, err = sess.Table("taxi")
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
}
