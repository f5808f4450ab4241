package testsupport

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string, mode os.FileMode) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// MakeSysfsBlock creates <root>/block/<name>/uevent with the given properties,
// mirroring the layout the kernel exposes for block devices.
func MakeSysfsBlock(t testing.TB, root, name string, props map[string]string) {
	t.Helper()

	if props == nil {
		props = map[string]string{}
	}
	if _, ok := props["DEVNAME"]; !ok {
		props["DEVNAME"] = name
	}
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(props[key])
		b.WriteByte('\n')
	}
	WriteFile(t, filepath.Join(root, "block", name, "uevent"), b.String(), 0o644)
}
