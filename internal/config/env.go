package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const namespace = "ITS"

// Env is the environment snapshot consumed once at process start. Decision
// logic never reads the environment directly; it receives this snapshot.
type Env struct {
	InteractiveAllowlist bool          `envconfig:"INTERACTIVE_ALLOWLIST" default:"true"`
	AutoApproveCI        bool          `envconfig:"AUTO_APPROVE_CI" default:"false"`
	AllowHTTP            bool          `envconfig:"ALLOW_HTTP" default:"false"`
	BlockLocalhost       bool          `envconfig:"BLOCK_LOCALHOST" default:"true"`
	RequestTimeout       time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	AllowlistFile        string        `envconfig:"ALLOWLIST_FILE"`
}

// LoadEnv reads the ITS_* environment variables.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	return &env, nil
}
