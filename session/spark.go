package session

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/taxitip/frame"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
)

// sparkConn is the part of a Spark Connect session the pipeline needs.
type sparkConn interface {
	// ReadView registers path as a temporary view.
	ReadView(ctx context.Context, view, path, format string) error
	// Exec runs a SQL command.
	Exec(ctx context.Context, query string) error
	// Collect runs a query and returns its column names and rows.
	Collect(ctx context.Context, query string) ([]string, [][]any, error)
	Stop() error
}

// Spark is a session on a Spark Connect server.
type Spark struct {
	cache
	conn sparkConn
}

func newSpark(conn sparkConn) *Spark {
	return &Spark{cache: newCache(), conn: conn}
}

// Mode implements Session.
func (s *Spark) Mode() string { return ModeSpark }

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load registers path as a temporary view, caches it on the cluster and
// collects it.
func (s *Spark) Load(ctx context.Context, name, path, format string) (*frame.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	if !identRe.MatchString(name) {
		return nil, errors.NewValidationError("table", "must be a SQL identifier", name)
	}
	start := time.Now()
	logger := log.GetLoggerWithName("session.spark").With(log.TableKey, name)

	if err := s.conn.ReadView(ctx, name, path, format); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if err := s.conn.Exec(ctx, "CACHE TABLE "+name); err != nil {
		return nil, errors.Wrapf(err, "cache %s", name)
	}
	logger.Debug("Table cached on cluster")

	t, err := s.collect(ctx, name)
	if err != nil {
		// the table is not registered locally, so Uncache would never reach the cluster
		if uerr := s.conn.Exec(context.WithoutCancel(ctx), "UNCACHE TABLE IF EXISTS "+name); uerr != nil {
			logger.Warn("Uncache after failed load", log.ErrorKey, uerr.Error())
		}
		return nil, err
	}

	s.put(name, t)
	logLoaded(ModeSpark, t, path, start)
	return t, nil
}

func (s *Spark) collect(ctx context.Context, name string) (*frame.Table, error) {
	cols, rows, err := s.conn.Collect(ctx, "SELECT * FROM "+name)
	if err != nil {
		return nil, errors.Wrapf(err, "collect %s", name)
	}
	return rowsToTable(name, cols, rows)
}

// Table implements Session.
func (s *Spark) Table(name string) (*frame.Table, error) {
	return s.get(name)
}

// Uncache drops the table from the local registry and the cluster cache.
func (s *Spark) Uncache(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.remove(name); err != nil {
		return err
	}
	if err := s.conn.Exec(ctx, "UNCACHE TABLE IF EXISTS "+name); err != nil {
		return errors.Wrapf(err, "uncache %s", name)
	}
	return nil
}

// Close stops the remote session.
func (s *Spark) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.closed = true
	s.tables = nil
	if err := s.conn.Stop(); err != nil {
		return errors.Wrap(err, "stop spark session")
	}
	return nil
}

// csvViewSQL registers a header CSV as a temporary view with inferred types.
func csvViewSQL(view, path string) string {
	return fmt.Sprintf("CREATE OR REPLACE TEMPORARY VIEW %s USING csv OPTIONS (path '%s', header 'true', inferSchema 'true')",
		view, strings.ReplaceAll(path, "'", "\\'"))
}

// rowsToTable converts collected rows to a table. A column whose non-null
// values are all integers becomes an Int column unless it has nulls, a
// numeric column becomes Float with NaN for null, anything else String.
func rowsToTable(name string, cols []string, rows [][]any) (*frame.Table, error) {
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, errors.NewDimensionError(fmt.Sprintf("session.collect row %d", i), len(cols), len(r), 1)
		}
	}
	out := make([]series.Series, len(cols))
	for j, col := range cols {
		kind := columnKind(rows, j)
		switch kind {
		case kindInt:
			v := make([]int, len(rows))
			for i, r := range rows {
				f, _ := toFloat(r[j])
				v[i] = int(f)
			}
			out[j] = series.New(v, series.Int, col)
		case kindFloat:
			v := make([]float64, len(rows))
			for i, r := range rows {
				f, ok := toFloat(r[j])
				if !ok {
					f = math.NaN()
				}
				v[i] = f
			}
			out[j] = series.New(v, series.Float, col)
		default:
			v := make([]string, len(rows))
			for i, r := range rows {
				if r[j] != nil {
					v[i] = fmt.Sprint(r[j])
				}
			}
			out[j] = series.New(v, series.String, col)
		}
	}
	return frame.FromColumns(name, out...)
}

type valueKind int

const (
	kindInt valueKind = iota
	kindFloat
	kindString
)

// columnKind infers the kind of column j. Without rows nothing is known
// about it and it stays a string.
func columnKind(rows [][]any, j int) valueKind {
	if len(rows) == 0 {
		return kindString
	}
	kind := kindInt
	for _, r := range rows {
		switch r[j].(type) {
		case nil:
			if kind == kindInt {
				kind = kindFloat
			}
		case int8, int16, int32, int64, int, uint8, uint16, uint32, uint64:
		case float32, float64:
			kind = kindFloat
		default:
			return kindString
		}
	}
	return kind
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
