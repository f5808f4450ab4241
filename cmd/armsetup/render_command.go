package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"armsetup/internal/bootstrap"
	"armsetup/internal/config"
	"armsetup/internal/launch"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var flags imageFlags
	var output string
	var uid, gid int

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Detect host facts and print the launch script without provisioning",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy()
			if err != nil {
				return err
			}
			if flags.gpu == string(bootstrap.GPUAsk) && !cmd.Flags().Changed("gpu") {
				flags.gpu = string(bootstrap.GPUNo)
			}
			choice, err := flags.apply(cfg)
			if err != nil {
				return err
			}
			if (uid > 0) != (gid > 0) {
				return fmt.Errorf("--uid and --gid must be given together")
			}
			logger := ctx.log()

			services, err := newHostServices(cfg, logger, cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer services.close()

			pipeline := bootstrap.NewPipeline(cfg, services.deps, logger)
			_, lc, err := pipeline.Preview(cmd.Context(), bootstrap.PreviewOptions{GPU: choice, UID: uid, GID: gid})
			if err != nil {
				return err
			}
			return writeRendered(cmd, cfg, lc, output)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the script to this path instead of stdout (existing file kept as .bak)")
	cmd.Flags().IntVar(&uid, "uid", 0, "Service account uid (skips the account lookup)")
	cmd.Flags().IntVar(&gid, "gid", 0, "Service account gid (skips the account lookup)")
	return cmd
}

func writeRendered(cmd *cobra.Command, cfg *config.Config, lc launch.Config, output string) error {
	output = strings.TrimSpace(output)
	if output == "" {
		return launch.Render(cmd.OutOrStdout(), lc)
	}
	path, err := config.ExpandPath(output)
	if err != nil {
		return err
	}
	backup, err := launch.WriteScript(path, lc, launch.Owner{UID: -1, GID: -1})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	if backup != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Previous script saved as %s\n", backup)
	}
	return nil
}
