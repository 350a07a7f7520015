// Package launch resolves how the backend process should be started for a
// given runtime mode. Resolvers only determine the command to run; they never
// perform process management themselves.
package launch

import (
	"fmt"
	"os"
)

// Mode selects between the development and production backend layouts.
type Mode int

const (
	// Development runs the backend from its Python source tree using a
	// project-local virtualenv interpreter.
	Development Mode = iota

	// Production runs the standalone backend executable bundled with the
	// packaged application.
	Production
)

func (m Mode) String() string {
	switch m {
	case Development:
		return "development"
	case Production:
		return "production"
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// ParseMode parses a mode name as accepted on the command line.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "dev", "development":
		return Development, nil
	case "prod", "production":
		return Production, nil
	}
	return 0, fmt.Errorf("unknown mode %q, expected one of [dev,prod]", s)
}

// Spec is a concrete command to launch the backend with.
type Spec struct {
	Program string
	Args    []string
	Dir     string
}

// Resolver determines the launch spec for the backend. Implementations must
// be deterministic: resolving twice yields the same spec.
type Resolver interface {
	Resolve() (Spec, error)
}

// NewResolver returns the resolver for the given mode. startDir is where the
// development resolver begins its search for the project root; resourceDir is
// where the production resolver looks for the bundled executable. Either may
// be empty to use the current working directory.
func NewResolver(mode Mode, startDir, resourceDir string) Resolver {
	if mode == Development {
		return &DevResolver{StartDir: startDir}
	}
	return &ProdResolver{ResourceDir: resourceDir}
}

func orWorkingDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting wd: %w", err)
	}
	return wd, nil
}
