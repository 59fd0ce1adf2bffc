package console

import (
	"fmt"
	"os"
	"os/user"
)

// Operator identifies who runs the console, for the audit trail in logs.
type Operator struct {
	Hostname string
	Username string
}

// String renders the operator as user@host.
func (o Operator) String() string {
	return o.Username + "@" + o.Hostname
}

// DetectOperator gathers host and user information.
func DetectOperator() (Operator, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Operator{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Operator{}, fmt.Errorf("current user: %w", err)
	}

	return Operator{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
