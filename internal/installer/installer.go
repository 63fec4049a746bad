// Package installer fetches, verifies and runs the model runner's installer.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"

	"llmhost/internal/executil"
)

// Failure classes wrapped by Install so callers can map them to exit policy.
var (
	ErrFetch   = errors.New("installer download failed")
	ErrExecute = errors.New("installer execution failed")
)

// Installer installs the runner unless its binary is already on PATH.
type Installer struct {
	Runner  executil.Runner
	Fetcher Fetcher
	Log     zerolog.Logger

	Binary  string
	URL     string
	Digest  string
	Timeout time.Duration
	// TempDir holds the downloaded script; os.TempDir() when empty.
	TempDir string
}

// Result describes what Install did.
type Result struct {
	AlreadyInstalled bool
	Verified         bool
	Digest           digest.Digest
	BinaryPath       string
}

// Install runs fetch -> verify -> execute. Errors wrap ErrFetch, ErrExecute
// or an *IntegrityError.
func (in Installer) Install(ctx context.Context) (Result, error) {
	if p, err := in.Runner.LookPath(in.Binary); err == nil {
		in.Log.Info().Str("path", p).Msgf("%s already installed; skipping installer", in.Binary)
		return Result{AlreadyInstalled: true, BinaryPath: p}, nil
	}

	in.Log.Info().Str("url", in.URL).Msg("downloading model runner installer")
	body, err := in.Fetcher.Fetch(ctx, in.URL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	res := Result{}
	d, err := Verify(body, in.Digest)
	switch {
	case errors.Is(err, ErrNoDigest):
		in.Log.Warn().Str("digest", d.String()).Msg("no installer digest configured; integrity check skipped")
	case err != nil:
		return Result{Digest: d}, err
	default:
		res.Verified = true
		in.Log.Info().Str("digest", d.String()).Msg("installer digest verified")
	}
	res.Digest = d

	f, err := os.CreateTemp(in.TempDir, "runner-install-*.sh")
	if err != nil {
		return res, fmt.Errorf("%w: stage script: %w", ErrExecute, err)
	}
	script := f.Name()
	defer os.Remove(script)
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return res, fmt.Errorf("%w: stage script: %w", ErrExecute, err)
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("%w: stage script: %w", ErrExecute, err)
	}

	in.Log.Info().Msg("running model runner installer")
	if err := in.Runner.Run(ctx, executil.Cmd{Path: "sh", Args: []string{script}, Timeout: in.Timeout}); err != nil {
		return res, fmt.Errorf("%w: %w", ErrExecute, err)
	}
	p, err := in.Runner.LookPath(in.Binary)
	if err != nil {
		return res, fmt.Errorf("%w: %s not on PATH after install", ErrExecute, in.Binary)
	}
	res.BinaryPath = p
	return res, nil
}
