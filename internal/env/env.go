package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/swapface/internal/envvar"
)

// Environment is the runtime environment the process runs in.
type Environment string

const (
	// Development enables verbose, colored console logs.
	Development Environment = "development"

	// Production logs at info level and keeps log files.
	Production Environment = "production"
)

// FromEnv reads the environment from SWAPFACE_ENV, defaulting to development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.SwapfaceEnv))
}

// Parse converts a raw value into an Environment.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return Production
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}
