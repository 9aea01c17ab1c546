// Package manifest reads the consumed-only binary manifest that maps
// canonical platform keys to verified host binaries (spec.md §6). The
// client never writes this file; it is produced by whatever packaging step
// stages host binaries into HOST_CACHE.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// Binary describes one platform's verified host artifact.
type Binary struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest is the decoded shape of manifest.json.
type Manifest struct {
	Version  string            `json:"version"`
	Binaries map[string]Binary `json:"binaries"`
}

// canonicalPlatformKeys are the only platform tuples the manifest may key
// binaries by (spec.md §6).
var canonicalPlatformKeys = map[string]bool{
	"linux-x64":   true,
	"linux-arm64": true,
	"osx-x64":     true,
	"osx-arm64":   true,
	"win-x64":     true,
}

// Load reads and parses a manifest.json file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return &m, nil
}

// Resolve looks up the binary for platformKey, rejecting any key outside
// the canonical tuple set even if the manifest happens to contain it.
func (m *Manifest) Resolve(platformKey string) (*Binary, bool) {
	if !canonicalPlatformKeys[platformKey] {
		return nil, false
	}
	b, ok := m.Binaries[platformKey]
	if !ok {
		return nil, false
	}
	return &b, true
}

// CurrentPlatformKey returns this process's canonical platform key, or ""
// if the running GOOS/GOARCH pair has no canonical tuple.
func CurrentPlatformKey() string {
	switch runtime.GOOS {
	case "linux":
		switch runtime.GOARCH {
		case "amd64":
			return "linux-x64"
		case "arm64":
			return "linux-arm64"
		}
	case "darwin":
		switch runtime.GOARCH {
		case "amd64":
			return "osx-x64"
		case "arm64":
			return "osx-arm64"
		}
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "win-x64"
		}
	}
	return ""
}
