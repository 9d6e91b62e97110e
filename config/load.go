package config

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel   = "TAXITIP_LOG_LEVEL"
	EnvHadoopUser = "HADOOP_USER_NAME"
)

// Load reads the YAML file at path over the defaults. An empty path or a
// missing file gives Default(). Environment overrides are applied, the
// result is not validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return ApplyEnv(Default()), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ApplyEnv(Default()), nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Unmarshal(content)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return ApplyEnv(cfg), nil
}

// Unmarshal decodes YAML over the defaults. Unknown keys are rejected.
func Unmarshal(content []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode yaml")
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "encode yaml")
	}
	return out, nil
}

// ApplyEnv overrides the log level from TAXITIP_LOG_LEVEL and fills an empty
// HDFS user from HADOOP_USER_NAME.
func ApplyEnv(cfg *Config) *Config {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	if cfg.Connection.User == "" {
		cfg.Connection.User = os.Getenv(EnvHadoopUser)
	}
	return cfg
}
