package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the optional per-project configuration file looked up in the
// working directory.
const FileName = ".its-cli.yaml"

// FileConfig holds defaults a project can pin so every invocation does not
// need to repeat the same flags. CLI flags always win over file values.
type FileConfig struct {
	Output    string `yaml:"output"`
	Variables string `yaml:"variables"`
	Strict    bool   `yaml:"strict"`
	AllowHTTP bool   `yaml:"allow_http"`
	Timeout   string `yaml:"timeout"`
}

// LoadFile reads the project configuration at path. A missing file is not an
// error; it yields a zero config.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
