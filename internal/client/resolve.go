package client

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/codeformat/fmtbridge/internal/manifest"
)

// resolveHost finds the host binary to launch, trying in order: an explicit
// path override, a manifest-derived platform-specific path under hostCache,
// then conventional build-output paths (spec.md §4.5). Each candidate must
// exist and be executable.
func resolveHost(hostPathOverride, hostCache string) (string, error) {
	if hostPathOverride != "" {
		ok, err := isExecutableFile(hostPathOverride)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrHostUnresolved
		}
		return hostPathOverride, nil
	}

	if hostCache != "" {
		if path, ok := resolveFromManifest(hostCache); ok {
			return path, nil
		}
	}

	for _, candidate := range conventionalPaths(hostCache) {
		if ok, _ := isExecutableFile(candidate); ok {
			return candidate, nil
		}
	}

	return "", ErrHostUnresolved
}

func resolveFromManifest(hostCache string) (string, bool) {
	m, err := manifest.Load(filepath.Join(hostCache, "manifest.json"))
	if err != nil {
		return "", false
	}
	bin, ok := m.Resolve(manifest.CurrentPlatformKey())
	if !ok {
		return "", false
	}

	path := bin.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(hostCache, path)
	}
	if ok, err := isExecutableFile(path); err != nil || !ok {
		return "", false
	}
	return path, true
}

func conventionalPaths(hostCache string) []string {
	roots := []string{"."}
	if hostCache != "" {
		roots = append(roots, hostCache)
	}
	var paths []string
	for _, root := range roots {
		paths = append(paths,
			filepath.Join(root, "bin", "fmthost"),
			filepath.Join(root, "out", "fmthost"),
			filepath.Join(root, "build", "fmthost"),
		)
	}
	return paths
}

func isExecutableFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if info.Mode()&0o111 == 0 {
		return false, nil
	}
	return true, nil
}

// launchCommand returns the executable and leading arguments needed to run
// hostPath: native binaries are launched directly, while .dll-style
// artifacts are launched through a platform runtime command (spec.md §4.5).
func launchCommand(hostPath string) (string, []string) {
	if strings.EqualFold(filepath.Ext(hostPath), ".dll") {
		return "dotnet", []string{hostPath}
	}
	return hostPath, nil
}
