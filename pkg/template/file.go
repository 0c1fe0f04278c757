package template

import (
	"errors"
	"os"
	"path/filepath"
)

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("template: file path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return data, nil
}
