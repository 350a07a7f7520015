package launch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/echosmith/echosmith/internal/files"
)

const backendDirName = "backend"

// DevResolver locates the backend Python source tree and a project-local
// virtualenv interpreter. The backend directory is searched upward from
// StartDir, so the shell can be launched from anywhere inside the project.
type DevResolver struct {
	StartDir string
}

func (r *DevResolver) Resolve() (Spec, error) {
	start, err := orWorkingDir(r.StartDir)
	if err != nil {
		return Spec{}, err
	}

	backendDir := files.FindUpDir(backendDirName, start)
	if backendDir == "" {
		return Spec{}, fmt.Errorf("backend source not found: no %q directory at or above %s", backendDirName, start)
	}
	projectRoot := filepath.Dir(backendDir)

	python := findVenvPython(projectRoot)
	if python == "" {
		python = "python3"
	}

	return Spec{
		Program: python,
		Args:    []string{"-m", "backend"},
		Dir:     projectRoot,
	}, nil
}

// findVenvPython returns the interpreter of a project-local virtualenv, or ""
// if none exists. A local venv is preferred to avoid system Python conflicts.
func findVenvPython(projectRoot string) string {
	var candidates []string
	if runtime.GOOS == "windows" {
		candidates = []string{
			filepath.Join(projectRoot, ".venv", "Scripts", "python.exe"),
			filepath.Join(projectRoot, "venv", "Scripts", "python.exe"),
		}
	} else {
		candidates = []string{
			filepath.Join(projectRoot, ".venv", "bin", "python3"),
			filepath.Join(projectRoot, ".venv", "bin", "python"),
			filepath.Join(projectRoot, "venv", "bin", "python3"),
			filepath.Join(projectRoot, "venv", "bin", "python"),
		}
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
