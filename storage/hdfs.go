package storage

import (
	"context"
	"io/fs"
	"os"

	"github.com/colinmarc/hdfs/v2"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
)

// Requirement:
//   Hadoop/HDFS version: 2 or later, RPC port of the namenode reachable.

// HDFSSource reads from an HDFS cluster.
type HDFSSource struct {
	client   *hdfs.Client
	namenode string
	user     string
}

// NewHDFSSource connects to namenode as user. An empty user falls back to
// HADOOP_USER_NAME.
func NewHDFSSource(namenode, user string) (*HDFSSource, error) {
	if user == "" {
		user = os.Getenv("HADOOP_USER_NAME")
	}
	client, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: []string{namenode},
		User:      user,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to namenode %s", namenode)
	}
	log.GetLoggerWithName("storage.hdfs").Debug("Connected to namenode",
		"namenode", namenode,
		"user", user,
	)
	return &HDFSSource{client: client, namenode: namenode, user: user}, nil
}

type hdfsFile struct {
	*hdfs.FileReader
}

func (f hdfsFile) Size() int64 { return f.Stat().Size() }

// Open implements Source.
func (s *HDFSSource) Open(ctx context.Context, name string) (File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.client.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open hdfs://%s%s", s.namenode, name)
	}
	return hdfsFile{FileReader: r}, nil
}

// Stat implements Source.
func (s *HDFSSource) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.client.Stat(name)
}

// ReadDir implements Source.
func (s *HDFSSource) ReadDir(ctx context.Context, dir string) ([]fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.client.ReadDir(dir)
}

// Close implements Source.
func (s *HDFSSource) Close() error {
	return s.client.Close()
}
