package executil

import (
	"context"
	"os/exec"

	"github.com/rs/zerolog"
)

// DryRunner logs commands instead of running them. PATH lookups are real so
// the plan reflects which steps would be skipped.
type DryRunner struct {
	Log zerolog.Logger
}

func (d DryRunner) Run(_ context.Context, c Cmd) error {
	d.Log.Info().Str("cmd", c.String()).Msg("dry-run: would execute")
	return nil
}

func (d DryRunner) LookPath(name string) (string, error) { return exec.LookPath(name) }
