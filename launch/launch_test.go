package launch

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"dev", "development"} {
		mode, err := ParseMode(s)
		require.NoError(t, err)
		require.Equal(t, Development, mode)
	}
	for _, s := range []string{"prod", "production"} {
		mode, err := ParseMode(s)
		require.NoError(t, err)
		require.Equal(t, Production, mode)
	}
	_, err := ParseMode("staging")
	require.ErrorContains(t, err, "unknown mode")
}

func makeProject(t *testing.T, withVenv bool) string {
	t.Helper()
	project := filepath.Join(t.TempDir(), "echosmith")
	require.NoError(t, os.MkdirAll(filepath.Join(project, "backend"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(project, "shell", "src"), 0o755))
	if withVenv {
		binDir := filepath.Join(project, ".venv", "bin")
		require.NoError(t, os.MkdirAll(binDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(binDir, "python3"), []byte("#!/bin/sh\n"), 0o755))
	}
	return project
}

func TestDevResolverFindsVenvPython(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix venv layout")
	}
	project := makeProject(t, true)

	// Resolving from deep inside the project still finds the root.
	r := &DevResolver{StartDir: filepath.Join(project, "shell", "src")}
	spec, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(project, ".venv", "bin", "python3"), spec.Program)
	require.Equal(t, []string{"-m", "backend"}, spec.Args)
	require.Equal(t, project, spec.Dir)
}

func TestDevResolverFallsBackToSystemPython(t *testing.T) {
	project := makeProject(t, false)
	r := &DevResolver{StartDir: project}
	spec, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, "python3", spec.Program)
	require.Equal(t, project, spec.Dir)
}

func TestDevResolverErrorsWithoutBackendSource(t *testing.T) {
	r := &DevResolver{StartDir: t.TempDir()}
	_, err := r.Resolve()
	require.ErrorContains(t, err, "backend source not found")
}

func TestProdResolverFindsBundledExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix executable name")
	}
	resourceDir := t.TempDir()
	exe := filepath.Join(resourceDir, "backend", "backend")
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	r := &ProdResolver{ResourceDir: resourceDir}
	spec, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, exe, spec.Program)
	require.Empty(t, spec.Args)
}

func TestProdResolverProbesAlternateLayouts(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix executable name")
	}
	resourceDir := t.TempDir()
	exe := filepath.Join(resourceDir, "backend_dist", "backend", "backend")
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	r := &ProdResolver{ResourceDir: resourceDir}
	spec, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, exe, spec.Program)
}

func TestProdResolverErrorsWhenMissing(t *testing.T) {
	r := &ProdResolver{ResourceDir: t.TempDir()}
	_, err := r.Resolve()
	require.ErrorContains(t, err, "backend executable not found")
}

func TestNewResolverSelectsVariant(t *testing.T) {
	require.IsType(t, &DevResolver{}, NewResolver(Development, "", ""))
	require.IsType(t, &ProdResolver{}, NewResolver(Production, "", ""))
}
