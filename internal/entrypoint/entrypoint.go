// Package entrypoint prepares the ARM container before handing control to
// the main process: the arm account takes the host ids passed in through
// ARM_UID and ARM_GID, and the expected directory layout exists with the
// right owner.
package entrypoint

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"armsetup/internal/fileutil"
	"armsetup/internal/logging"
)

const (
	defaultID    = 1000
	dirMode      = 0o755
	containerArm = "arm"
	armHome      = "/home/arm"
)

// Directories created under the container filesystem.
var Directories = []string{
	"/home/arm/music",
	"/home/arm/logs",
	"/home/arm/media",
	"/home/arm/config",
	"/home/arm/.MakeMKV",
	"/etc/arm/config",
}

// IDAligner makes an account carry the requested ids.
type IDAligner interface {
	AlignIDs(ctx context.Context, user, group, home string, uid, gid int) error
}

// Options configure Provision.
type Options struct {
	UID int
	GID int
	// Root prefixes every directory; empty means "/".
	Root string
}

// OptionsFromEnv reads ARM_UID and ARM_GID, defaulting each to 1000.
func OptionsFromEnv(getenv func(string) string) (Options, error) {
	uid, err := idFromEnv(getenv, "ARM_UID")
	if err != nil {
		return Options{}, err
	}
	gid, err := idFromEnv(getenv, "ARM_GID")
	if err != nil {
		return Options{}, err
	}
	return Options{UID: uid, GID: gid}, nil
}

func idFromEnv(getenv func(string) string, key string) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return defaultID, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return id, nil
}

// Provisioner prepares the container.
type Provisioner struct {
	accounts IDAligner
	logger   *slog.Logger
	exec     func(argv0 string, argv []string, envv []string) error
	lookPath func(string) (string, error)
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(accounts IDAligner, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		accounts: accounts,
		logger:   logging.NewComponentLogger(logger, "entrypoint"),
		exec:     unix.Exec,
		lookPath: exec.LookPath,
	}
}

// Provision aligns the arm account with the requested ids and creates the
// directory layout. Running it again changes nothing.
func (p *Provisioner) Provision(ctx context.Context, opts Options) error {
	if opts.UID <= 0 || opts.GID <= 0 {
		return fmt.Errorf("uid and gid must be positive, got %d:%d", opts.UID, opts.GID)
	}
	if err := p.accounts.AlignIDs(ctx, containerArm, containerArm, armHome, opts.UID, opts.GID); err != nil {
		return fmt.Errorf("align arm account: %w", err)
	}

	root := opts.Root
	if root == "" {
		root = "/"
	}
	for _, dir := range Directories {
		target := filepath.Join(root, dir)
		created, err := fileutil.EnsureDir(target, dirMode, opts.UID, opts.GID)
		if err != nil {
			return err
		}
		if created {
			p.logger.DebugContext(ctx, "created directory", logging.String("path", target))
		}
	}

	p.logger.InfoContext(ctx, "container provisioned",
		logging.String(logging.FieldEventType, "entrypoint_provisioned"),
		logging.Int("uid", opts.UID),
		logging.Int("gid", opts.GID),
	)
	return nil
}

// Exec replaces the current process with args. It only returns on failure.
func (p *Provisioner) Exec(args []string) error {
	if len(args) == 0 {
		return nil
	}
	path, err := p.lookPath(args[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[0], err)
	}
	if err := p.exec(path, args, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}
