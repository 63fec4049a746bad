package executil

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// FakeRunner records commands and answers from canned results. It is meant
// for tests of packages that drive a Runner.
type FakeRunner struct {
	mu    sync.Mutex
	calls []Cmd
	// Present lists binaries LookPath resolves.
	Present map[string]bool
	// Fail maps a command prefix (as rendered by Cmd.String without sudo) to
	// the error Run returns for it.
	Fail map[string]error
	// OnRun, when set, runs after recording and may mutate Present (e.g. an
	// installer making its binary appear).
	OnRun func(Cmd)
}

// NewFakeRunner returns a FakeRunner with the given binaries on PATH.
func NewFakeRunner(present ...string) *FakeRunner {
	f := &FakeRunner{Present: map[string]bool{}, Fail: map[string]error{}}
	for _, p := range present {
		f.Present[p] = true
	}
	return f
}

func (f *FakeRunner) Run(_ context.Context, c Cmd) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	onRun := f.OnRun
	line := strings.Join(append([]string{c.Path}, c.Args...), " ")
	var err error
	for prefix, e := range f.Fail {
		if strings.HasPrefix(line, prefix) {
			err = e
			break
		}
	}
	f.mu.Unlock()
	if onRun != nil {
		onRun(c)
	}
	return err
}

func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Present[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}

// SetPresent marks a binary as installed.
func (f *FakeRunner) SetPresent(name string) {
	f.mu.Lock()
	f.Present[name] = true
	f.mu.Unlock()
}

// Calls returns a copy of the recorded commands.
func (f *FakeRunner) Calls() []Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Cmd, len(f.calls))
	copy(out, f.calls)
	return out
}

// Lines returns recorded commands rendered as "path arg1 arg2".
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = strings.Join(append([]string{c.Path}, c.Args...), " ")
	}
	return out
}
