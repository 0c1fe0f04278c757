// Package config assembles the immutable settings snapshot for one CLI
// invocation: environment variables first, then the optional project file,
// then explicit flag overrides. Nothing downstream reads the environment.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Limits bound template processing. Strict mode tightens them.
type Limits struct {
	MaxTemplateSize    int64
	MaxResponseSize    int64
	MaxContentElements int
	MaxNestingDepth    int
}

// DefaultLimits are the regular processing bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxTemplateSize:    1 << 20,   // 1MB
		MaxResponseSize:    10 << 20,  // 10MB
		MaxContentElements: 1000,
		MaxNestingDepth:    10,
	}
}

// StrictLimits are the tightened bounds enabled by --strict.
func StrictLimits() Limits {
	return Limits{
		MaxTemplateSize:    512 << 10, // 512KB
		MaxResponseSize:    5 << 20,   // 5MB
		MaxContentElements: 500,
		MaxNestingDepth:    8,
	}
}

// Settings is the merged, immutable configuration for one invocation.
type Settings struct {
	InteractiveAllowlist bool
	AutoApproveCI        bool
	AllowHTTP            bool
	BlockLocalhost       bool
	RequestTimeout       time.Duration
	AllowlistFile        string
	Strict               bool
	Limits               Limits
}

// Overrides are explicit CLI flag values. Pointer fields distinguish "flag
// not given" from a false/zero value.
type Overrides struct {
	AllowHTTP            *bool
	InteractiveAllowlist *bool
	Timeout              *time.Duration
	Strict               bool
}

// Resolve merges environment, project file, and flag overrides into the
// final snapshot.
func Resolve(env *Env, file *FileConfig, overrides Overrides) Settings {
	s := Settings{
		InteractiveAllowlist: env.InteractiveAllowlist,
		AutoApproveCI:        env.AutoApproveCI,
		AllowHTTP:            env.AllowHTTP,
		BlockLocalhost:       env.BlockLocalhost,
		RequestTimeout:       env.RequestTimeout,
		AllowlistFile:        env.AllowlistFile,
	}

	if file != nil {
		if file.AllowHTTP {
			s.AllowHTTP = true
		}
		if file.Strict {
			s.Strict = true
		}
		if file.Timeout != "" {
			if d, err := time.ParseDuration(file.Timeout); err == nil && d > 0 {
				s.RequestTimeout = d
			}
		}
	}

	if overrides.AllowHTTP != nil {
		s.AllowHTTP = *overrides.AllowHTTP
	}
	if overrides.InteractiveAllowlist != nil {
		s.InteractiveAllowlist = *overrides.InteractiveAllowlist
	}
	if overrides.Timeout != nil && *overrides.Timeout > 0 {
		s.RequestTimeout = *overrides.Timeout
	}
	if overrides.Strict {
		s.Strict = true
	}

	if s.Strict {
		s.Limits = StrictLimits()
	} else {
		s.Limits = DefaultLimits()
	}
	if s.AllowlistFile == "" {
		s.AllowlistFile = DefaultAllowlistPath()
	}
	return s
}

// DefaultAllowlistPath is the store location when ITS_ALLOWLIST_FILE is not
// set: ~/.its-cli/allowlist.json, falling back to the working directory when
// the home directory cannot be determined.
func DefaultAllowlistPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".its-cli", "allowlist.json")
	}
	return filepath.Join(home, ".its-cli", "allowlist.json")
}
