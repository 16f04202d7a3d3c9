package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// commands is what the loop dispatches to. *App implements it.
type commands interface {
	Ping(ctx context.Context) error
	Pending(ctx context.Context) error
	Sync(ctx context.Context) error
	Pull(ctx context.Context, entryID string) error
	Put(ctx context.Context, path string) error
	Get(ctx context.Context, entryID, path string) error
	Enrollment(ctx context.Context, org, enrollmentID string) error
	OrgConfig(ctx context.Context) error
}

const helpText = "Available commands: ping, pending, sync, pull <entry-id>, put <path>, get <entry-id> <path>, enrollment <org> <id>, org-config, exit"

var errUnknownCommand = errors.New("unknown command")

// errUsage marks a command called with the wrong arguments.
type errUsage string

func (e errUsage) Error() string { return "usage: " + string(e) }

// dispatch runs one command line. It reports quit for exit/quit.
func dispatch(ctx context.Context, c commands, w io.Writer, parts []string) (quit bool, err error) {
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(w, helpText)
	case "ping":
		err = c.Ping(ctx)
	case "pending":
		err = c.Pending(ctx)
	case "sync":
		err = c.Sync(ctx)
	case "pull":
		if len(args) != 1 {
			return false, errUsage("pull <entry-id>")
		}
		err = c.Pull(ctx, args[0])
	case "put":
		if len(args) != 1 {
			return false, errUsage("put <path>")
		}
		err = c.Put(ctx, args[0])
	case "get":
		if len(args) != 2 {
			return false, errUsage("get <entry-id> <path>")
		}
		err = c.Get(ctx, args[0], args[1])
	case "enrollment":
		if len(args) != 2 {
			return false, errUsage("enrollment <org> <enrollment-id>")
		}
		err = c.Enrollment(ctx, args[0], args[1])
	case "org-config":
		err = c.OrgConfig(ctx)
	case "exit", "quit":
		fmt.Fprintln(w, "Bye!")
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
	return false, err
}

// runREPL reads commands from r until EOF, exit or ctx cancellation.
// Command errors are reported on w and do not stop the loop.
func runREPL(ctx context.Context, c commands, r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "gv> ")
		if ctx.Err() != nil || !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		quit, err := dispatch(ctx, c, w, parts)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
		}
		if quit {
			return
		}
	}
}
