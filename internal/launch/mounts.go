package launch

import (
	"fmt"
	"path/filepath"

	"armsetup/internal/fileutil"
)

const mountMode = 0o755

// logicalDirs are the service home subdirectories bound into the container,
// in script order.
var logicalDirs = []string{"music", "logs", "media", "config"}

var containerPaths = map[string]string{
	"music":  "/home/arm/music",
	"logs":   "/home/arm/logs",
	"media":  "/home/arm/media",
	"config": "/etc/arm/config",
}

// Mounts returns the fixed mount list for home without touching disk.
func Mounts(home string) []Mount {
	mounts := make([]Mount, 0, len(logicalDirs))
	for _, name := range logicalDirs {
		mounts = append(mounts, Mount{
			Name:          name,
			HostPath:      filepath.Join(home, name),
			ContainerPath: containerPaths[name],
		})
	}
	return mounts
}

// PrepareMounts creates the mount directories under home with mode 0755
// owned by uid:gid. Existing directories are adjusted, not recreated.
func PrepareMounts(home string, uid, gid int) ([]Mount, error) {
	if !filepath.IsAbs(home) {
		return nil, fmt.Errorf("service home %q is not absolute", home)
	}
	mounts := Mounts(home)
	for _, m := range mounts {
		if _, err := fileutil.EnsureDir(m.HostPath, mountMode, uid, gid); err != nil {
			return nil, fmt.Errorf("prepare %s directory: %w", m.Name, err)
		}
	}
	return mounts, nil
}
