package main

import (
	"os"

	"github.com/spf13/cobra"

	"armsetup/internal/account"
	"armsetup/internal/entrypoint"
	"armsetup/internal/hostexec"
	"armsetup/internal/logging"
)

// newEntrypoint is swapped in tests so nothing is exec'd.
var newEntrypoint = func(runner hostexec.Runner) *entrypoint.Provisioner {
	logger, err := logging.New(logging.Options{Level: "info", Format: "console"})
	if err != nil {
		logger = logging.NewNop()
	}
	return entrypoint.NewProvisioner(account.NewProvisioner(runner, logger), logger)
}

func newEntrypointCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "entrypoint [command [args...]]",
		Short: "Container entrypoint: align the arm account with ARM_UID/ARM_GID, then exec command",
		Long: "Runs inside the ARM container as root. Gives the arm user and group the ids from\n" +
			"ARM_UID and ARM_GID (default 1000), creates the expected directories, and replaces\n" +
			"itself with the given command.",
		Annotations:        map[string]string{"skipConfigLoad": "true"},
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
				return cmd.Help()
			}
			opts, err := entrypoint.OptionsFromEnv(os.Getenv)
			if err != nil {
				return err
			}
			provisioner := newEntrypoint(hostexec.NewRunner())
			if err := provisioner.Provision(cmd.Context(), opts); err != nil {
				return err
			}
			return provisioner.Exec(args)
		},
	}
}
