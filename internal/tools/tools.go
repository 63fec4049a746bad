// Package tools installs auxiliary programs: diagnostic utilities and the
// optional AI-assistant package.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"llmhost/internal/config"
	"llmhost/internal/executil"
	"llmhost/internal/pkgmgr"
)

// Outcome is the result of installing one tool.
type Outcome string

const (
	OutcomePresent   Outcome = "present"
	OutcomeInstalled Outcome = "installed"
	OutcomeFallback  Outcome = "fallback"
	OutcomeFailed    Outcome = "failed"
	OutcomeDisabled  Outcome = "disabled"
)

// Result reports one tool.
type Result struct {
	Name     string
	Outcome  Outcome
	Required bool
	Err      error
}

// ErrRequired wraps the failure of a tool marked required.
var ErrRequired = errors.New("required tool install failed")

// Installer installs tools through the package manager with a fallback command.
type Installer struct {
	Runner  executil.Runner
	Manager pkgmgr.Manager
	Log     zerolog.Logger
}

// Install installs one tool. Optional failures come back as a Result with
// OutcomeFailed and a nil error; required failures also return an error
// wrapping ErrRequired.
func (in Installer) Install(ctx context.Context, t config.Tool) (Result, error) {
	res := Result{Name: t.Name, Required: t.Required}
	l := in.Log.With().Str("tool", t.Name).Logger()
	if t.Disabled {
		res.Outcome = OutcomeDisabled
		return res, nil
	}
	if t.Binary != "" {
		if _, err := in.Runner.LookPath(t.Binary); err == nil {
			l.Info().Msg("already installed")
			res.Outcome = OutcomePresent
			return res, nil
		}
	}

	var errs []error
	if len(t.Packages) > 0 {
		err := in.Manager.Install(ctx, in.Runner, t.Packages...)
		if err == nil {
			res.Outcome = OutcomeInstalled
			return res, nil
		}
		l.Warn().Err(err).Msg("package install failed")
		errs = append(errs, err)
	}
	if t.Fallback != "" {
		err := in.runFallback(ctx, t.Fallback)
		if err == nil {
			l.Info().Str("fallback", t.Fallback).Msg("installed via fallback")
			res.Outcome = OutcomeFallback
			return res, nil
		}
		l.Warn().Err(err).Msg("fallback install failed")
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no packages or fallback configured"))
	}

	res.Outcome = OutcomeFailed
	res.Err = errors.Join(errs...)
	if t.Required {
		return res, fmt.Errorf("%w: %s: %w", ErrRequired, t.Name, res.Err)
	}
	l.Warn().Err(res.Err).Msg("optional tool skipped")
	return res, nil
}

func (in Installer) runFallback(ctx context.Context, line string) error {
	c, err := executil.ParseCommand(line)
	if err != nil {
		return err
	}
	return in.Runner.Run(ctx, c)
}

// InstallAll installs tools in order and stops at the first required failure.
func (in Installer) InstallAll(ctx context.Context, list []config.Tool) ([]Result, error) {
	out := make([]Result, 0, len(list))
	for _, t := range list {
		res, err := in.Install(ctx, t)
		out = append(out, res)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
