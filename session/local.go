package session

import (
	"context"
	"time"

	"github.com/YuminosukeSato/taxitip/frame"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
	"github.com/YuminosukeSato/taxitip/storage"
)

// Local is an in-process session backed by package storage.
type Local struct {
	cache
	storage storage.Options
	// sourceFor resolves a dataset path. Tests replace it.
	sourceFor func(path string, opts storage.Options) (storage.Source, string, error)
}

// NewLocal returns a local session.
func NewLocal(opts Options) *Local {
	return &Local{
		cache:     newCache(),
		storage:   storage.Options{Namenode: opts.Namenode, User: opts.User},
		sourceFor: storage.ForPath,
	}
}

// Mode implements Session.
func (s *Local) Mode() string { return ModeLocal }

// Load implements Session.
func (s *Local) Load(ctx context.Context, name, path, format string) (*frame.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	start := time.Now()

	src, p, err := s.sourceFor(path, s.storage)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	files, err := storage.Expand(ctx, src, p, "."+format)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}

	var t *frame.Table
	for _, f := range files {
		part, err := readFile(ctx, src, name, f, format)
		if err != nil {
			return nil, err
		}
		if t == nil {
			t = part
			continue
		}
		if t, err = t.Concat(part); err != nil {
			return nil, err
		}
	}

	s.put(name, t)
	log.GetLoggerWithName("session.local").Debug("Read data files",
		log.TableKey, name,
		"files", len(files),
	)
	logLoaded(ModeLocal, t, path, start)
	return t, nil
}

func readFile(ctx context.Context, src storage.Source, name, path, format string) (*frame.Table, error) {
	f, err := src.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if format == FormatCSV {
		return frame.ReadCSV(name, f)
	}
	return frame.ReadParquet(name, f)
}

// Table implements Session.
func (s *Local) Table(name string) (*frame.Table, error) {
	return s.get(name)
}

// Uncache implements Session.
func (s *Local) Uncache(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.remove(name)
}

// Close implements Session.
func (s *Local) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.closed = true
	s.tables = nil
	return nil
}
