// Package session is the compute session the pipeline loads and caches its
// dataset through.
//
// Two modes exist. "local" reads the dataset with package storage and keeps
// the decoded table in memory. "spark" asks a Spark Connect server to read
// and cache the table, then collects it so the estimators can train on it
// in-process.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/YuminosukeSato/taxitip/frame"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
)

// Modes.
const (
	ModeLocal = "local"
	ModeSpark = "spark"
)

// Dataset formats.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// Session loads and caches named tables.
type Session interface {
	// Mode returns "local" or "spark".
	Mode() string
	// Load reads path in format, caches it under name and returns it.
	Load(ctx context.Context, name, path, format string) (*frame.Table, error)
	// Table returns a cached table.
	Table(name string) (*frame.Table, error)
	// Uncache drops a cached table.
	Uncache(ctx context.Context, name string) error
	// Close releases the session. Later calls fail with ErrSessionClosed.
	Close() error
}

// Options configure Connect.
type Options struct {
	Mode     string
	Remote   string // Spark Connect address, sc://host:port
	Namenode string // default namenode for hdfs:// paths
	User     string
}

// Connect opens a session in the requested mode.
func Connect(ctx context.Context, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName("session").With(log.ModeKey, opts.Mode)

	switch opts.Mode {
	case ModeLocal, "":
		logger.Info("Session opened")
		return NewLocal(opts), nil
	case ModeSpark:
		conn, err := dialSpark(opts.Remote)
		if err != nil {
			return nil, errors.Wrapf(err, "connect to %s", opts.Remote)
		}
		logger.Info("Session opened", "remote", opts.Remote)
		return newSpark(conn), nil
	default:
		return nil, errors.NewValidationError("mode", "must be local or spark", opts.Mode)
	}
}

// cache is the table registry shared by both modes.
type cache struct {
	mu     sync.Mutex
	tables map[string]*frame.Table
	closed bool
}

func newCache() cache {
	return cache{tables: make(map[string]*frame.Table)}
}

func (c *cache) checkOpen() error {
	if c.closed {
		return errors.WithStack(errors.ErrSessionClosed)
	}
	return nil
}

func (c *cache) put(name string, t *frame.Table) {
	c.tables[name] = t
}

func (c *cache) get(name string) (*frame.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	t, ok := c.tables[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotCached, "table %s", name)
	}
	return t, nil
}

func (c *cache) remove(name string) error {
	if _, ok := c.tables[name]; !ok {
		return errors.Wrapf(errors.ErrNotCached, "table %s", name)
	}
	delete(c.tables, name)
	return nil
}

func checkFormat(format string) error {
	switch format {
	case FormatParquet, FormatCSV:
		return nil
	}
	return errors.NewValidationError("format", "must be parquet or csv", format)
}

func logLoaded(mode string, t *frame.Table, path string, start time.Time) {
	log.GetLoggerWithName("session").Info("Table cached",
		log.ModeKey, mode,
		log.TableKey, t.Name,
		log.PathKey, path,
		log.SamplesKey, t.Nrow(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
}
