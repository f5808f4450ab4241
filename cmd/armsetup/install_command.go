package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"armsetup/internal/bootstrap"
	"armsetup/internal/config"
	"armsetup/internal/logging"
	"armsetup/internal/prompt"
)

// imageFlags are shared by commands that produce a launch script.
type imageFlags struct {
	fork string
	tag  string
	port int
	gpu  string
}

func (f *imageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.fork, "fork", "f", "", "Image namespace to pull from (default from config, automaticrippingmachine)")
	cmd.Flags().StringVarP(&f.tag, "tag", "t", "", "Image tag (default from config, latest)")
	cmd.Flags().IntVar(&f.port, "port", 0, "Host port published to the ARM web UI (default from config, 8080)")
	cmd.Flags().StringVar(&f.gpu, "gpu", string(bootstrap.GPUAsk), "GPU passthrough: ask, yes, or no")
}

// apply layers the flags over cfg and returns the GPU choice.
func (f *imageFlags) apply(cfg *config.Config) (bootstrap.GPUChoice, error) {
	if fork := strings.Trim(strings.TrimSpace(f.fork), "/"); fork != "" {
		cfg.Image.Fork = fork
	}
	if tag := strings.TrimPrefix(strings.TrimSpace(f.tag), ":"); tag != "" {
		cfg.Image.Tag = tag
	}
	if f.port != 0 {
		cfg.Launch.HostPort = f.port
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	choice, ok := bootstrap.ParseGPUChoice(f.gpu)
	if !ok {
		return "", fmt.Errorf("invalid --gpu value %q (want ask, yes, or no)", f.gpu)
	}
	return choice, nil
}

func newInstallCommand(ctx *commandContext) *cobra.Command {
	var flags imageFlags
	var setPassword bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Provision the host and write the ARM launch script",
		Long: "Checks for root, creates the service account, installs the container engine when missing,\n" +
			"pulls the ARM image, prepares the mount directories, detects host facts and optical drives,\n" +
			"and writes <home>/start_arm_container.sh. An existing script is kept as .bak.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy()
			if err != nil {
				return err
			}
			choice, err := flags.apply(cfg)
			if err != nil {
				return err
			}
			logger := ctx.log()

			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			opts := bootstrap.Options{GPU: choice}
			if setPassword {
				if !prompt.Interactive(in) {
					logger.Warn("reading service account password from non-terminal input",
						logging.String(logging.FieldEventType, "password_plain_input"),
					)
				}
				password, err := prompt.Secret(in, out, fmt.Sprintf("Password for %s", cfg.Service.User))
				if err != nil {
					return err
				}
				opts.Password = password
			}

			services, err := newHostServices(cfg, logger, in, out)
			if err != nil {
				return err
			}
			defer services.close()

			deps := services.deps
			deps.Reporter = newStageReporter(out)
			state, err := bootstrap.NewPipeline(cfg, deps, logger).Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nLaunch script written to %s\n", state.ScriptPath)
			if state.Backup != "" {
				fmt.Fprintf(out, "Previous script saved as %s\n", state.Backup)
			}
			fmt.Fprintf(out, "Start ARM with: sudo -u %s %s\n", state.Account.User, state.ScriptPath)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&setPassword, "set-password", false, "Prompt for the service account password when the account is created")
	return cmd
}
