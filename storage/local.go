package storage

import (
	"context"
	"io/fs"
	"os"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// LocalSource reads from the local filesystem.
type LocalSource struct{}

// NewLocalSource returns a Source on the local filesystem.
func NewLocalSource() *LocalSource { return &LocalSource{} }

type localFile struct {
	*os.File
	size int64
}

func (f *localFile) Size() int64 { return f.size }

// Open implements Source.
func (s *LocalSource) Open(ctx context.Context, name string) (File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", name)
	}
	return &localFile{File: f, size: info.Size()}, nil
}

// Stat implements Source.
func (s *LocalSource) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Stat(name)
}

// ReadDir implements Source.
func (s *LocalSource) ReadDir(ctx context.Context, dir string) ([]fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Close implements Source.
func (s *LocalSource) Close() error { return nil }
