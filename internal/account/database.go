package account

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
)

// Database resolves accounts and groups.
type Database interface {
	LookupUser(name string) (*user.User, error)
	LookupGroup(name string) (*user.Group, error)
}

type systemDatabase struct{}

// SystemDatabase reads the host account database through os/user.
func SystemDatabase() Database {
	return systemDatabase{}
}

func (systemDatabase) LookupUser(name string) (*user.User, error) {
	return user.Lookup(name)
}

func (systemDatabase) LookupGroup(name string) (*user.Group, error) {
	return user.LookupGroup(name)
}

func userExists(db Database, name string) (*user.User, bool, error) {
	u, err := db.LookupUser(name)
	if err == nil {
		return u, true, nil
	}
	var unknown user.UnknownUserError
	if errors.As(err, &unknown) {
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("lookup user %s: %w", name, err)
}

func groupExists(db Database, name string) (*user.Group, bool, error) {
	g, err := db.LookupGroup(name)
	if err == nil {
		return g, true, nil
	}
	var unknown user.UnknownGroupError
	if errors.As(err, &unknown) {
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("lookup group %s: %w", name, err)
}

func parseID(kind, value string) (int, error) {
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", kind, value, err)
	}
	return id, nil
}
