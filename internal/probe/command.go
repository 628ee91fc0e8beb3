package probe

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Command is an executable path plus its arguments.
type Command struct {
	Path string
	Args []string
}

// String renders the command for logs with secrets masked.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Path)
	for i, a := range c.Args {
		if i > 0 && c.Args[i-1] == "-W" {
			a = "***"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Target identifies the TURN server under test.
type Target struct {
	Address string
	Port    int // 0 = probe default
	Secret  string
}

// TurnCommand builds the turnutils_uclient style invocation: client-to-client
// mode (-y) without RTCP (-c), optional port and static auth secret, and the
// server address last.
func TurnCommand(binary string, t Target) Command {
	args := []string{"-y", "-c"}
	if t.Port > 0 {
		args = append(args, "-p", strconv.Itoa(t.Port))
	}
	if t.Secret != "" {
		args = append(args, "-W", t.Secret)
	}
	args = append(args, t.Address)
	return Command{Path: binary, Args: args}
}

// LookupBinary resolves the probe executable on PATH.
func LookupBinary(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("probe binary %q not found in PATH: %w", name, err)
	}
	return p, nil
}
