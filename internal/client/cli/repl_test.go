package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommands struct {
	calls []string
	err   error
}

func (f *fakeCommands) record(s string) error {
	f.calls = append(f.calls, s)
	return f.err
}

func (f *fakeCommands) Ping(context.Context) error    { return f.record("ping") }
func (f *fakeCommands) Pending(context.Context) error { return f.record("pending") }
func (f *fakeCommands) Sync(context.Context) error    { return f.record("sync") }
func (f *fakeCommands) Pull(_ context.Context, id string) error {
	return f.record("pull " + id)
}
func (f *fakeCommands) Put(_ context.Context, path string) error {
	return f.record("put " + path)
}
func (f *fakeCommands) Get(_ context.Context, id, path string) error {
	return f.record("get " + id + " " + path)
}
func (f *fakeCommands) Enrollment(_ context.Context, org, id string) error {
	return f.record("enrollment " + org + " " + id)
}
func (f *fakeCommands) OrgConfig(context.Context) error { return f.record("org-config") }

func TestRunREPL_Dispatch(t *testing.T) {
	f := &fakeCommands{}
	in := strings.NewReader(strings.Join([]string{
		"help",
		"",
		"ping",
		"pending",
		"pull e1",
		"put ./a.txt",
		"get e1 ./b.txt",
		"enrollment acme 42",
		"org-config",
		"sync",
		"exit",
		"ping", // never reached
	}, "\n"))
	var out bytes.Buffer

	runREPL(context.Background(), f, in, &out)

	assert.Equal(t, []string{
		"ping", "pending", "pull e1", "put ./a.txt", "get e1 ./b.txt",
		"enrollment acme 42", "org-config", "sync",
	}, f.calls)
	assert.Contains(t, out.String(), "Available commands")
	assert.Contains(t, out.String(), "Bye!")
}

func TestRunREPL_ErrorsDoNotStopTheLoop(t *testing.T) {
	f := &fakeCommands{err: errors.New("boom")}
	var out bytes.Buffer

	runREPL(context.Background(), f, strings.NewReader("ping\nfrobnicate\npull\nsync\n"), &out)

	assert.Equal(t, []string{"ping", "sync"}, f.calls)
	s := out.String()
	assert.Contains(t, s, "error: boom")
	assert.Contains(t, s, "error: unknown command: frobnicate")
	assert.Contains(t, s, "error: usage: pull <entry-id>")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	f := &fakeCommands{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runREPL(ctx, f, strings.NewReader("ping\n"), &bytes.Buffer{})
	assert.Empty(t, f.calls)
}

func TestDispatch_UsageErrors(t *testing.T) {
	f := &fakeCommands{}
	for _, line := range []string{"pull", "put", "get e1", "enrollment acme", "what"} {
		_, err := dispatch(context.Background(), f, &bytes.Buffer{}, strings.Fields(line))
		require.Error(t, err, line)
		assert.True(t, IsUsage(err), line)
	}
	assert.Empty(t, f.calls)

	_, err := dispatch(context.Background(), &fakeCommands{err: errors.New("x")}, &bytes.Buffer{}, []string{"ping"})
	assert.False(t, IsUsage(err))
}
