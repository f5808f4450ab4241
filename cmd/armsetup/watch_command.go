package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"armsetup/internal/logging"
	"armsetup/internal/optical"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var wrapper string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Listen for disc insertions and run the ARM wrapper for each",
		Long: "Subscribes to udev block events and runs \"<wrapper> <kernel-name>\" whenever an optical\n" +
			"drive reports new media. This is the daemon counterpart of \"armsetup udev-rule --install\".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy()
			if err != nil {
				return err
			}
			if value := strings.TrimSpace(wrapper); value != "" {
				cfg.Watch.Wrapper = value
			}
			logger := ctx.log()

			services, err := newHostServices(cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer services.close()

			timeout := time.Duration(cfg.Detection.ProbeTimeout) * time.Second
			handler := optical.WrapperHandler(services.runner, logger, cfg.Watch.Wrapper, timeout)
			logger.Info("watching for disc insertions",
				logging.String(logging.FieldEventType, "watch_started"),
				logging.String("wrapper", cfg.Watch.Wrapper),
			)
			fmt.Fprintln(cmd.OutOrStdout(), "Watching for disc insertions; press Ctrl+C to stop")

			return optical.NewMonitor(logger, handler).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&wrapper, "wrapper", "", "Command run for each inserted disc (default from config)")
	return cmd
}
