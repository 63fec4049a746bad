// Package executil runs external commands for provisioning steps. Steps take
// a Runner so tests and dry runs can substitute fakes for real installers.
package executil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"

	"llmhost/internal/logging"
)

// Cmd describes one external command.
type Cmd struct {
	Path string
	Args []string
	Env  map[string]string // additional env vars
	Dir  string            // working directory
	// Sudo runs the command through sudo when not already root.
	Sudo bool
	// Timeout bounds the command; zero uses the runner default.
	Timeout time.Duration
	Stdin   io.Reader
}

func (c Cmd) String() string {
	parts := append([]string{c.Path}, c.Args...)
	s := strings.Join(parts, " ")
	if c.Sudo {
		s = "sudo " + s
	}
	return s
}

// Runner executes commands and resolves binaries on PATH.
type Runner interface {
	Run(ctx context.Context, c Cmd) error
	LookPath(name string) (string, error)
}

const waitDelay = 2 * time.Second

// ErrTimeout is wrapped by Run when a command exceeds its timeout.
var ErrTimeout = errors.New("command timed out")

// ExecRunner runs real processes, streaming their output into the logger.
type ExecRunner struct {
	Log            zerolog.Logger
	DefaultTimeout time.Duration
	// Geteuid and lookPath are overridable for tests.
	Geteuid  func() int
	lookPath func(string) (string, error)
}

// NewExecRunner returns a runner bounded by defaultTimeout per command.
func NewExecRunner(l zerolog.Logger, defaultTimeout time.Duration) *ExecRunner {
	return &ExecRunner{Log: l, DefaultTimeout: defaultTimeout, Geteuid: os.Geteuid, lookPath: exec.LookPath}
}

func (r *ExecRunner) LookPath(name string) (string, error) {
	if r.lookPath != nil {
		return r.lookPath(name)
	}
	return exec.LookPath(name)
}

func (r *ExecRunner) Run(ctx context.Context, c Cmd) error {
	path, args := r.resolveSudo(c)
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, path, args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	// inherit environment
	cmd.Env = os.Environ()
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Stdin = c.Stdin
	// children that outlive a killed parent must not hold the pipes open forever
	cmd.WaitDelay = waitDelay
	l := r.Log.With().Str("cmd", c.Path).Logger()
	stdout := logging.NewLineWriter(l, zerolog.InfoLevel, "stdout")
	stderr := logging.NewLineWriter(l, zerolog.InfoLevel, "stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	r.Log.Debug().Str("cmd", c.String()).Dur("timeout", timeout).Msg("exec")
	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w after %s", c.String(), ErrTimeout, timeout)
	}
	return fmt.Errorf("%s: %w", c.String(), err)
}

// resolveSudo prefixes sudo when the command asks for it, we are not root and
// sudo exists. Otherwise the command runs as-is. sudo resets the environment,
// so Cmd.Env is passed through env(1) on the command line.
func (r *ExecRunner) resolveSudo(c Cmd) (string, []string) {
	if !c.Sudo {
		return c.Path, c.Args
	}
	euid := os.Geteuid
	if r.Geteuid != nil {
		euid = r.Geteuid
	}
	if euid() == 0 {
		return c.Path, c.Args
	}
	if _, err := r.LookPath("sudo"); err == nil {
		args := make([]string, 0, len(c.Env)+len(c.Args)+2)
		if len(c.Env) > 0 {
			args = append(args, "env")
			for _, k := range slices.Sorted(maps.Keys(c.Env)) {
				args = append(args, k+"="+c.Env[k])
			}
		}
		args = append(args, c.Path)
		return "sudo", append(args, c.Args...)
	}
	return c.Path, c.Args
}

// ParseCommand splits a configured command line into a Cmd using shell word
// rules (quotes and escapes, no expansion).
func ParseCommand(line string) (Cmd, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return Cmd{}, fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(words) == 0 {
		return Cmd{}, fmt.Errorf("empty command")
	}
	return Cmd{Path: words[0], Args: words[1:]}, nil
}
