package main

import (
	"fmt"
	"strings"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

// hashPassword prints the configuration line setting the bcrypt hash of pwd as role's password.
func (cli *commandLine) hashPassword(role, pwd string) error {
	role = core.CleanString(role, true)
	if !core.Contains(auth.StaffRoles, role) {
		return fmt.Errorf("%q is not a staff role (one of %s)", role, strings.Join(auth.StaffRoles, ", "))
	}
	hash, err := auth.HashPassword(pwd)
	if err != nil {
		return err
	}
	cli.printf("%s_AUTHPASSWORDS%s=%s\n", cli.conf.Env, strings.ToUpper(role), hash)
	return nil
}
