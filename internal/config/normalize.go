package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeImage()
	c.normalizeService()
	c.normalizeLaunch()
	c.normalizeEngine()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeImage() {
	if value, ok := os.LookupEnv("ARMSETUP_FORK"); ok && strings.TrimSpace(value) != "" {
		c.Image.Fork = value
	}
	if value, ok := os.LookupEnv("ARMSETUP_TAG"); ok && strings.TrimSpace(value) != "" {
		c.Image.Tag = value
	}
	c.Image.Fork = strings.Trim(strings.TrimSpace(c.Image.Fork), "/")
	c.Image.Name = strings.Trim(strings.TrimSpace(c.Image.Name), "/")
	c.Image.Tag = strings.TrimPrefix(strings.TrimSpace(c.Image.Tag), ":")
	if c.Image.Fork == "" {
		c.Image.Fork = defaultImageFork
	}
	if c.Image.Name == "" {
		c.Image.Name = defaultImageName
	}
	if c.Image.Tag == "" {
		c.Image.Tag = defaultImageTag
	}
}

func (c *Config) normalizeService() {
	c.Service.User = strings.TrimSpace(c.Service.User)
	c.Service.Group = strings.TrimSpace(c.Service.Group)
	if c.Service.User == "" {
		c.Service.User = defaultServiceUser
	}
	if c.Service.Group == "" {
		c.Service.Group = c.Service.User
	}
	groups := make([]string, 0, len(c.Service.DeviceGroups))
	seen := make(map[string]struct{}, len(c.Service.DeviceGroups))
	for _, group := range c.Service.DeviceGroups {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		if _, ok := seen[group]; ok {
			continue
		}
		seen[group] = struct{}{}
		groups = append(groups, group)
	}
	c.Service.DeviceGroups = groups
}

func (c *Config) normalizeLaunch() {
	c.Launch.ContainerName = strings.TrimSpace(c.Launch.ContainerName)
	if c.Launch.ContainerName == "" {
		c.Launch.ContainerName = defaultContainerName
	}
	c.Launch.ScriptName = strings.TrimSpace(c.Launch.ScriptName)
	if c.Launch.ScriptName == "" {
		c.Launch.ScriptName = defaultScriptName
	}
}

func (c *Config) normalizeEngine() {
	c.Engine.InstallScriptURL = strings.TrimSpace(c.Engine.InstallScriptURL)
	c.Engine.ServiceName = strings.TrimSpace(c.Engine.ServiceName)
	if c.Engine.ServiceName == "" {
		c.Engine.ServiceName = defaultEngineService
	}
	c.Engine.AccessGroup = strings.TrimSpace(c.Engine.AccessGroup)
	if c.Engine.AccessGroup == "" {
		c.Engine.AccessGroup = defaultEngineGroup
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Service.Home) != "" {
		if c.Service.Home, err = expandPath(c.Service.Home); err != nil {
			return fmt.Errorf("service.home: %w", err)
		}
	}
	if c.Paths.LockFile, err = expandPath(c.Paths.LockFile); err != nil {
		return fmt.Errorf("paths.lock_file: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.UdevRule, err = expandPath(c.Paths.UdevRule); err != nil {
		return fmt.Errorf("paths.udev_rule: %w", err)
	}
	if strings.TrimSpace(c.Detection.SysfsRoot) == "" {
		c.Detection.SysfsRoot = defaultSysfsRoot
	}
	if c.Detection.SysfsRoot, err = expandPath(c.Detection.SysfsRoot); err != nil {
		return fmt.Errorf("detection.sysfs_root: %w", err)
	}
	c.Watch.Wrapper = strings.TrimSpace(c.Watch.Wrapper)
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
