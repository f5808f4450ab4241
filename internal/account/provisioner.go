package account

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"armsetup/internal/hostexec"
	"armsetup/internal/logging"
)

// Spec describes the service account to provision.
type Spec struct {
	User         string
	Group        string
	DeviceGroups []string
	// Password is applied only when the account is created by this call.
	Password string
}

// Account is the resolved service account.
type Account struct {
	User    string
	Group   string
	UID     int
	GID     int
	Home    string
	Created bool
	// Groups lists the supplementary groups granted during provisioning.
	Groups []string
}

// Provisioner creates and inspects accounts through the host utilities.
type Provisioner struct {
	runner hostexec.Runner
	db     Database
	logger *slog.Logger
}

// NewProvisioner constructs a Provisioner backed by the host account database.
func NewProvisioner(runner hostexec.Runner, logger *slog.Logger) *Provisioner {
	return NewProvisionerWithDatabase(runner, SystemDatabase(), logger)
}

// NewProvisionerWithDatabase constructs a Provisioner with a custom account database.
func NewProvisionerWithDatabase(runner hostexec.Runner, db Database, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		runner: runner,
		db:     db,
		logger: logging.NewComponentLogger(logger, "account"),
	}
}

// EnsureServiceAccount creates the service group and user when absent, adds
// the user to every device-access group that exists on the host, and returns
// the resolved account.
func (p *Provisioner) EnsureServiceAccount(ctx context.Context, spec Spec) (Account, error) {
	userName := strings.TrimSpace(spec.User)
	groupName := strings.TrimSpace(spec.Group)
	if userName == "" {
		return Account{}, fmt.Errorf("service account name is empty")
	}
	if groupName == "" {
		groupName = userName
	}

	_, found, err := groupExists(p.db, groupName)
	if err != nil {
		return Account{}, err
	}
	if found {
		p.logger.DebugContext(ctx, "service group present", logging.String("group", groupName))
	} else {
		if _, err := p.runner.Run(ctx, "groupadd", groupName); err != nil {
			return Account{}, fmt.Errorf("create group %s: %w", groupName, err)
		}
		p.logger.InfoContext(ctx, "created service group", logging.String("group", groupName))
	}

	created := false
	_, found, err = userExists(p.db, userName)
	if err != nil {
		return Account{}, err
	}
	if found {
		p.logger.InfoContext(ctx, "service account already exists", logging.String("user", userName))
	} else {
		if _, err := p.runner.Run(ctx, "useradd", "-m", "-g", groupName, "-s", "/bin/bash", userName); err != nil {
			return Account{}, fmt.Errorf("create user %s: %w", userName, err)
		}
		created = true
		p.logger.InfoContext(ctx, "created service account", logging.String("user", userName))
	}

	granted, err := p.grantGroups(ctx, userName, spec.DeviceGroups)
	if err != nil {
		return Account{}, err
	}

	if created && spec.Password != "" {
		if err := p.SetPassword(ctx, userName, spec.Password); err != nil {
			return Account{}, err
		}
	}

	acct, err := p.Lookup(userName)
	if err != nil {
		return Account{}, err
	}
	acct.Group = groupName
	acct.Created = created
	acct.Groups = granted
	return acct, nil
}

// AddToGroup appends a supplementary group to the user.
func (p *Provisioner) AddToGroup(ctx context.Context, userName, group string) error {
	if _, err := p.runner.Run(ctx, "usermod", "-aG", group, userName); err != nil {
		return fmt.Errorf("add %s to group %s: %w", userName, group, err)
	}
	return nil
}

// SetPassword sets the account password through chpasswd.
func (p *Provisioner) SetPassword(ctx context.Context, userName, password string) error {
	input := strings.NewReader(userName + ":" + password + "\n")
	if _, err := p.runner.RunInput(ctx, input, "chpasswd"); err != nil {
		return fmt.Errorf("set password for %s: %w", userName, err)
	}
	p.logger.InfoContext(ctx, "service account password set", logging.String("user", userName))
	return nil
}

// Lookup resolves an existing account. Non-positive ids are rejected because
// the launch script must never run the container as root.
func (p *Provisioner) Lookup(userName string) (Account, error) {
	u, found, err := userExists(p.db, userName)
	if err != nil {
		return Account{}, err
	}
	if !found {
		return Account{}, fmt.Errorf("service account %s does not exist", userName)
	}
	uid, err := parseID("uid", u.Uid)
	if err != nil {
		return Account{}, err
	}
	gid, err := parseID("gid", u.Gid)
	if err != nil {
		return Account{}, err
	}
	if uid <= 0 || gid <= 0 {
		return Account{}, fmt.Errorf("service account %s resolves to uid %d gid %d; ids must be positive", userName, uid, gid)
	}
	return Account{User: u.Username, UID: uid, GID: gid, Home: u.HomeDir}, nil
}

// AlignIDs makes user and group exist with exactly the requested ids,
// creating them or renumbering existing entries.
func (p *Provisioner) AlignIDs(ctx context.Context, userName, groupName, home string, uid, gid int) error {
	if uid <= 0 || gid <= 0 {
		return fmt.Errorf("requested ids must be positive, got uid %d gid %d", uid, gid)
	}
	uidText, gidText := strconv.Itoa(uid), strconv.Itoa(gid)

	g, found, err := groupExists(p.db, groupName)
	if err != nil {
		return err
	}
	switch {
	case !found:
		if _, err := p.runner.Run(ctx, "groupadd", "-g", gidText, groupName); err != nil {
			return fmt.Errorf("create group %s: %w", groupName, err)
		}
	case g.Gid != gidText:
		if _, err := p.runner.Run(ctx, "groupmod", "-o", "-g", gidText, groupName); err != nil {
			return fmt.Errorf("renumber group %s: %w", groupName, err)
		}
	}

	u, found, err := userExists(p.db, userName)
	if err != nil {
		return err
	}
	switch {
	case !found:
		if _, err := p.runner.Run(ctx, "useradd", "-o", "-u", uidText, "-g", groupName, "-d", home, "-s", "/bin/bash", userName); err != nil {
			return fmt.Errorf("create user %s: %w", userName, err)
		}
	case u.Uid != uidText || u.Gid != gidText:
		if _, err := p.runner.Run(ctx, "usermod", "-o", "-u", uidText, "-g", groupName, userName); err != nil {
			return fmt.Errorf("renumber user %s: %w", userName, err)
		}
	}
	return nil
}

func (p *Provisioner) grantGroups(ctx context.Context, userName string, groups []string) ([]string, error) {
	var granted []string
	for _, group := range groups {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		_, found, err := groupExists(p.db, group)
		if err != nil {
			return nil, err
		}
		if !found {
			p.logger.DebugContext(ctx, "device group not present on host; skipping", logging.String("group", group))
			continue
		}
		granted = append(granted, group)
	}
	if len(granted) == 0 {
		return nil, nil
	}
	if err := p.AddToGroup(ctx, userName, strings.Join(granted, ",")); err != nil {
		return nil, err
	}
	return granted, nil
}
