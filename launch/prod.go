package launch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ProdResolver finds the standalone backend executable inside the packaged
// application's resource directory. Several layouts are probed because
// packaging tools have shipped the sidecar under different relative paths
// across versions.
type ProdResolver struct {
	ResourceDir string
}

func (r *ProdResolver) Resolve() (Spec, error) {
	resourceDir, err := orWorkingDir(r.ResourceDir)
	if err != nil {
		return Spec{}, err
	}

	exeName := "backend"
	if runtime.GOOS == "windows" {
		exeName = "backend.exe"
	}

	candidates := []string{
		filepath.Join(resourceDir, "backend", exeName),
		filepath.Join(resourceDir, "backend", "backend", exeName),
		filepath.Join(resourceDir, "_up_", "_up_", "backend_dist", "backend", exeName),
		filepath.Join(resourceDir, "backend_dist", "backend", exeName),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return Spec{Program: candidate}, nil
		}
	}

	return Spec{}, fmt.Errorf("backend executable not found under %s (tried %d known layouts)", resourceDir, len(candidates))
}
