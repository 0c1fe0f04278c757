package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxVariablesSize caps the variables file to keep pathological inputs from
// exhausting memory.
const maxVariablesSize = 10 << 20 // 10MB

// systemDirs are prefixes the CLI refuses to write compiled output into.
var systemDirs = []string{"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin", "/proc", "/sys", "/dev", "/boot"}

// safeOutputPath rejects output destinations that look like path traversal
// or point into system directories.
func safeOutputPath(path string) error {
	// Patterns are checked on the raw path; Abs resolves dot-dot segments
	// away before they could be seen.
	for _, pattern := range []string{"..", "%", "<", ">", "|", "\"", "?", "*"} {
		if strings.Contains(path, pattern) {
			return fmt.Errorf("cli: unsafe output path %q", path)
		}
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cli: resolve output path %q: %w", path, err)
	}
	for _, dir := range systemDirs {
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return fmt.Errorf("cli: refusing to write into system directory: %s", resolved)
		}
	}
	return nil
}

// loadVariables reads a JSON file of variable values. The file must contain
// a JSON object.
func loadVariables(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cli: variables file: %w", err)
	}
	if info.Size() > maxVariablesSize {
		return nil, fmt.Errorf("cli: variables file %s exceeds %d bytes", path, int64(maxVariablesSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read variables %s: %w", path, err)
	}

	var vars map[string]any
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("cli: variables file %s must contain a JSON object: %w", path, err)
	}
	return vars, nil
}

// writeOutput writes the compiled prompt, creating parent directories.
func writeOutput(path, prompt string) error {
	if err := safeOutputPath(path); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cli: create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(prompt), 0o644); err != nil {
		return fmt.Errorf("cli: write output %s: %w", path, err)
	}
	return nil
}
