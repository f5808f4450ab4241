package account

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrPrivilege reports that the process lacks the rights to manage accounts.
var ErrPrivilege = errors.New("root privileges are required; re-run with sudo")

var geteuid = unix.Geteuid

// RequirePrivilege fails with ErrPrivilege unless the effective uid is root.
func RequirePrivilege() error {
	if geteuid() != 0 {
		return ErrPrivilege
	}
	return nil
}
