package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Image identifies the container image the launch script runs.
type Image struct {
	Fork string `toml:"fork"`
	Name string `toml:"name"`
	Tag  string `toml:"tag"`
}

// Service describes the dedicated account the container runs as.
type Service struct {
	User         string   `toml:"user"`
	Group        string   `toml:"group"`
	Home         string   `toml:"home"`
	DeviceGroups []string `toml:"device_groups"`
}

// Launch contains settings baked into the generated launch script.
type Launch struct {
	HostPort      int    `toml:"host_port"`
	ContainerName string `toml:"container_name"`
	ScriptName    string `toml:"script_name"`
}

// Engine contains container engine provisioning settings.
type Engine struct {
	InstallScriptURL string `toml:"install_script_url"`
	ServiceName      string `toml:"service_name"`
	AccessGroup      string `toml:"access_group"`
	PullTimeout      int    `toml:"pull_timeout"`
}

// Detection contains host probing settings.
type Detection struct {
	ProbeTimeout int    `toml:"probe_timeout"`
	SysfsRoot    string `toml:"sysfs_root"`
}

// Paths contains host file locations used by the tool itself.
type Paths struct {
	LockFile string `toml:"lock_file"`
	LogDir   string `toml:"log_dir"`
	UdevRule string `toml:"udev_rule"`
}

// Watch contains settings for the disc insertion watcher.
type Watch struct {
	Wrapper string `toml:"wrapper"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for armsetup.
//
// Configuration sections by subsystem:
//   - Image: image fork, name, and tag pulled and launched
//   - Service: service account name, home, and device-access groups
//   - Launch: host port, container name, and script file name
//   - Engine: container engine install script and service
//   - Detection: probe timeout and sysfs root for device discovery
//   - Paths: lock file, log directory, and udev rule location
//   - Watch: wrapper invoked on disc insertion
//   - Logging: log format and level
type Config struct {
	Image     Image     `toml:"image"`
	Service   Service   `toml:"service"`
	Launch    Launch    `toml:"launch"`
	Engine    Engine    `toml:"engine"`
	Detection Detection `toml:"detection"`
	Paths     Paths     `toml:"paths"`
	Watch     Watch     `toml:"watch"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the system-wide configuration location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// projectConfigName is looked up in the working directory when no system
// configuration exists.
const projectConfigName = "armsetup.toml"

// Load locates, parses, and validates a configuration file. An explicit path
// is used as-is; otherwise the system path is tried, then ./armsetup.toml. A
// missing file yields defaults. Unknown keys are rejected so typos do not pass
// silently. It returns the config, the path consulted, and whether that file
// existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, fmt.Errorf("%s: %w", resolvedPath, err)
	}
	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	err = decoder.Decode(cfg)

	var decodeErr *toml.DecodeError
	var strictErr *toml.StrictMissingError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &decodeErr):
		row, col := decodeErr.Position()
		return fmt.Errorf("parse config %s:%d:%d: %s", path, row, col, decodeErr.Error())
	case errors.As(err, &strictErr):
		return fmt.Errorf("parse config %s: unknown keys:\n%s", path, strictErr.String())
	default:
		return fmt.Errorf("parse config %s: %w", path, err)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		if err != nil {
			return "", false, err
		}
		return expanded, exists, nil
	}

	systemPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := expandPath(projectConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{systemPath, projectPath} {
		exists, err := isFile(candidate)
		if err != nil {
			return "", false, err
		}
		if exists {
			return candidate, true, nil
		}
	}
	return systemPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// ImageReference returns the unvalidated fork/name:tag string.
func (c *Config) ImageReference() string {
	return fmt.Sprintf("%s/%s:%s", c.Image.Fork, c.Image.Name, c.Image.Tag)
}

// ScriptPath returns the launch script location under the service home.
func (c *Config) ScriptPath(home string) string {
	if strings.TrimSpace(home) == "" {
		home = c.Service.Home
	}
	return filepath.Join(home, c.Launch.ScriptName)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	if pathValue == "~" || strings.HasPrefix(pathValue, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		pathValue = filepath.Join(home, strings.TrimPrefix(pathValue, "~"))
	}
	absolute, err := filepath.Abs(pathValue)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
