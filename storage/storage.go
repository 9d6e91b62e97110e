// Package storage opens the input dataset from HDFS or the local filesystem.
//
// Spark writes a table as a directory of part files, so a path may name either
// a single file or such a directory. Expand resolves both to a list of files.
package storage

import (
	"context"
	"io"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// File is an open dataset file. Parquet decoding needs ReaderAt and Size.
type File interface {
	io.Reader
	io.ReaderAt
	io.Closer
	Size() int64
}

// Source is a filesystem the dataset can be read from.
type Source interface {
	Open(ctx context.Context, name string) (File, error)
	Stat(ctx context.Context, name string) (fs.FileInfo, error)
	ReadDir(ctx context.Context, dir string) ([]fs.FileInfo, error)
	Close() error
}

// Options configure ForPath.
type Options struct {
	Namenode string // default namenode for hdfs:// paths without a host
	User     string
}

// ForPath picks the source for p and returns the path within that source.
// hdfs://host:port/x goes to HDFS, file:///x and plain paths to the local disk.
func ForPath(p string, opts Options) (Source, string, error) {
	if !strings.Contains(p, "://") {
		return NewLocalSource(), p, nil
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, "", errors.Wrapf(err, "parse dataset path %q", p)
	}
	switch u.Scheme {
	case "file":
		return NewLocalSource(), u.Path, nil
	case "hdfs":
		namenode := u.Host
		if namenode == "" {
			namenode = opts.Namenode
		}
		if namenode == "" {
			return nil, "", errors.NewValidationError("namenode", "required for hdfs paths", p)
		}
		src, err := NewHDFSSource(namenode, opts.User)
		if err != nil {
			return nil, "", err
		}
		return src, u.Path, nil
	default:
		return nil, "", errors.NewValidationError("path", "unsupported scheme "+u.Scheme, p)
	}
}

// Expand resolves name to the data files it denotes. A directory expands to
// its files with the given extension (all non-hidden files when ext is empty),
// sorted by name. Glob patterns are matched component by component.
func Expand(ctx context.Context, src Source, name, ext string) ([]string, error) {
	var candidates []string
	if hasMeta(name) {
		matches, err := Glob(ctx, src, name)
		if err != nil {
			return nil, err
		}
		candidates = matches
	} else {
		candidates = []string{name}
	}

	var files []string
	for _, c := range candidates {
		info, err := src.Stat(ctx, c)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", c)
		}
		if !info.IsDir() {
			files = append(files, c)
			continue
		}
		entries, err := src.ReadDir(ctx, c)
		if err != nil {
			return nil, errors.Wrapf(err, "read dir %s", c)
		}
		var parts []string
		for _, e := range entries {
			if e.IsDir() || isHidden(e.Name()) {
				continue
			}
			if ext != "" && !strings.HasSuffix(e.Name(), ext) {
				continue
			}
			parts = append(parts, path.Join(c, e.Name()))
		}
		sort.Strings(parts)
		files = append(files, parts...)
	}
	if len(files) == 0 {
		return nil, errors.NewModelError("storage.Expand", "no data files under "+name, errors.ErrEmptyData)
	}
	return files, nil
}

// Glob matches pattern against src. Only '*', '?' and character classes in
// path.Match syntax are supported, and the pattern must be absolute.
func Glob(ctx context.Context, src Source, pattern string) ([]string, error) {
	if pattern == "" || !strings.HasPrefix(pattern, "/") {
		return nil, errors.NewValidationError("pattern", "must be an absolute path", pattern)
	}
	if strings.HasSuffix(pattern, "/") {
		return nil, errors.NewValidationError("pattern", "must not end with a slash", pattern)
	}
	names := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	return glob(ctx, src, "/", names)
}

func glob(ctx context.Context, src Source, dir string, names []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := names[0]

	var dirs []string
	if hasMeta(name) {
		entries, err := src.ReadDir(ctx, dir)
		if err != nil {
			return nil, errors.Wrapf(err, "read dir %s", dir)
		}
		for _, e := range entries {
			matched, err := path.Match(name, e.Name())
			if err != nil {
				return nil, errors.Wrapf(err, "glob %s", name)
			}
			if matched {
				dirs = append(dirs, path.Join(dir, e.Name()))
			}
		}
		sort.Strings(dirs)
	} else {
		dirs = []string{path.Join(dir, name)}
	}

	var matches []string
	for _, p := range dirs {
		if len(names) == 1 {
			if _, err := src.Stat(ctx, p); err == nil {
				matches = append(matches, p)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			continue
		}
		sub, err := glob(ctx, src, p, names[1:])
		if err != nil {
			return nil, err
		}
		matches = append(matches, sub...)
	}
	return matches, nil
}

func hasMeta(name string) bool {
	return strings.ContainsAny(name, "*?[")
}

// isHidden skips _SUCCESS markers and .crc checksum files.
func isHidden(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}
