package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateImage(); err != nil {
		return err
	}
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateLaunch(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateImage() error {
	if strings.ContainsAny(c.Image.Tag, "/@ ") {
		return fmt.Errorf("image.tag %q must be a bare tag", c.Image.Tag)
	}
	if strings.ContainsAny(c.Image.Name, ":@ ") {
		return fmt.Errorf("image.name %q must not carry a tag or digest", c.Image.Name)
	}
	return nil
}

func (c *Config) validateService() error {
	if strings.ContainsAny(c.Service.User, ": /") {
		return fmt.Errorf("service.user %q is not a valid account name", c.Service.User)
	}
	if strings.ContainsAny(c.Service.Group, ": /") {
		return fmt.Errorf("service.group %q is not a valid group name", c.Service.Group)
	}
	return nil
}

func (c *Config) validateLaunch() error {
	if c.Launch.HostPort <= 0 || c.Launch.HostPort > 65535 {
		return fmt.Errorf("launch.host_port must be between 1 and 65535, got %d", c.Launch.HostPort)
	}
	if strings.ContainsAny(c.Launch.ScriptName, "/\\") {
		return errors.New("launch.script_name must be a file name, not a path")
	}
	if strings.ContainsAny(c.Launch.ContainerName, " \"'") {
		return fmt.Errorf("launch.container_name %q contains invalid characters", c.Launch.ContainerName)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.InstallScriptURL == "" {
		return errors.New("engine.install_script_url must be set")
	}
	parsed, err := url.Parse(c.Engine.InstallScriptURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("engine.install_script_url %q is not an absolute URL", c.Engine.InstallScriptURL)
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"engine.pull_timeout":     c.Engine.PullTimeout,
		"detection.probe_timeout": c.Detection.ProbeTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
