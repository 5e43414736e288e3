package transport

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// ServerLaunch describes how to start a language server process for the
// non-stdio transports, where the library binds an endpoint first and
// then launches (or shells out to) the server so it can connect back.
type ServerLaunch struct {
	// Path+Args launches the server directly.
	Path string
	Args []string

	// Command, if set, is executed through the platform shell instead
	// of Path/Args — used when a caller needs shell features (pipes,
	// env expansion) to start the server.
	Command string
}

// Start launches the configured process, substituting every occurrence
// of the placeholder "{{ADDR}}" in Args/Command with addr (the bound
// endpoint the server should connect to).
func (l ServerLaunch) Start(ctx context.Context, addr string) (*exec.Cmd, error) {
	var cmd *exec.Cmd
	if l.Command != "" {
		shell := "/bin/sh"
		flag := "-c"
		if os.Getenv("COMSPEC") != "" {
			shell = os.Getenv("COMSPEC")
			flag = "/C"
		}
		cmd = exec.CommandContext(ctx, shell, flag, substitute(l.Command, addr))
	} else {
		args := make([]string, len(l.Args))
		for i, a := range l.Args {
			args[i] = substitute(a, addr)
		}
		cmd = exec.CommandContext(ctx, l.Path, args...)
	}
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func substitute(s, addr string) string {
	return strings.ReplaceAll(s, "{{ADDR}}", addr)
}
