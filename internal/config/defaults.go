package config

const (
	defaultConfigPath       = "/etc/armsetup/config.toml"
	defaultImageFork        = "automaticrippingmachine"
	defaultImageName        = "automatic-ripping-machine"
	defaultImageTag         = "latest"
	defaultServiceUser      = "arm"
	defaultHostPort         = 8080
	defaultContainerName    = "arm-rippers"
	defaultScriptName       = "start_arm_container.sh"
	defaultInstallScriptURL = "https://get.docker.com"
	defaultEngineService    = "docker"
	defaultEngineGroup      = "docker"
	defaultPullTimeout      = 1800
	defaultProbeTimeout     = 10
	defaultSysfsRoot        = "/sys"
	defaultLockFile         = "/run/lock/armsetup.lock"
	defaultLogDir           = "/var/log/armsetup"
	defaultUdevRule         = "/etc/udev/rules.d/51-automatic-ripping-machine.rules"
	defaultWatchWrapper     = "/opt/arm/scripts/docker/docker_arm_wrapper.sh"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Image: Image{
			Fork: defaultImageFork,
			Name: defaultImageName,
			Tag:  defaultImageTag,
		},
		Service: Service{
			User:         defaultServiceUser,
			DeviceGroups: []string{"cdrom", "video", "render"},
		},
		Launch: Launch{
			HostPort:      defaultHostPort,
			ContainerName: defaultContainerName,
			ScriptName:    defaultScriptName,
		},
		Engine: Engine{
			InstallScriptURL: defaultInstallScriptURL,
			ServiceName:      defaultEngineService,
			AccessGroup:      defaultEngineGroup,
			PullTimeout:      defaultPullTimeout,
		},
		Detection: Detection{
			ProbeTimeout: defaultProbeTimeout,
			SysfsRoot:    defaultSysfsRoot,
		},
		Paths: Paths{
			LockFile: defaultLockFile,
			LogDir:   defaultLogDir,
			UdevRule: defaultUdevRule,
		},
		Watch: Watch{
			Wrapper: defaultWatchWrapper,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
