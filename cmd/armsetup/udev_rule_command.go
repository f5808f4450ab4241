package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"armsetup/internal/fileutil"
	"armsetup/internal/logging"
	"armsetup/internal/optical"
)

const udevRuleMode = 0o644

func newUdevRuleCommand(ctx *commandContext) *cobra.Command {
	var wrapper string
	var install bool

	cmd := &cobra.Command{
		Use:   "udev-rule",
		Short: "Print or install the udev rule that starts ARM on disc insertion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy()
			if err != nil {
				return err
			}
			if value := strings.TrimSpace(wrapper); value != "" {
				cfg.Watch.Wrapper = value
			}
			rule, err := optical.RenderUdevRule(cfg.Watch.Wrapper)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !install {
				fmt.Fprint(out, rule)
				return nil
			}

			logger := ctx.log()
			services, err := newHostServices(cfg, logger, cmd.InOrStdin(), out)
			if err != nil {
				return err
			}
			defer services.close()

			if services.deps.Privilege != nil {
				if err := services.deps.Privilege(); err != nil {
					return err
				}
			}
			if err := os.MkdirAll(filepath.Dir(cfg.Paths.UdevRule), 0o755); err != nil {
				return fmt.Errorf("create udev rules directory: %w", err)
			}
			backup, err := fileutil.ReplaceFile(cfg.Paths.UdevRule, []byte(rule), udevRuleMode)
			if err != nil {
				return fmt.Errorf("write udev rule: %w", err)
			}
			logger.Info("udev rule installed",
				logging.String(logging.FieldEventType, "udev_rule_installed"),
				logging.String("path", cfg.Paths.UdevRule),
				logging.String("backup", backup),
			)
			fmt.Fprintf(out, "Installed %s\n", cfg.Paths.UdevRule)

			if _, err := services.runner.Run(cmd.Context(), "udevadm", "control", "--reload-rules"); err != nil {
				logging.WarnWithContext(cmd.Context(), logger, "udev rule reload failed", "udev_reload_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "run udevadm control --reload-rules manually"),
					logging.String(logging.FieldImpact, "rule takes effect after the next reload or reboot"),
				)
				fmt.Fprintln(out, "Reload udev rules with: udevadm control --reload-rules")
				return nil
			}
			fmt.Fprintln(out, "udev rules reloaded")
			return nil
		},
	}

	cmd.Flags().StringVar(&wrapper, "wrapper", "", "Command the rule runs with the kernel device name (default from config)")
	cmd.Flags().BoolVar(&install, "install", false, "Write the rule to the configured path and reload udev (requires root)")
	return cmd
}
