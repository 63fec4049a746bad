package cli

import (
	"os"

	"github.com/rs/zerolog"

	"llmhost/internal/config"
	"llmhost/internal/executil"
	"llmhost/internal/hardware"
	"llmhost/internal/installer"
)

// Indirections so tests can run the command tree without touching the host.
var (
	fnNewProbe = func(l zerolog.Logger) hardware.Probe { return hardware.SystemProbe{Log: l} }

	fnNewRunner = func(l zerolog.Logger, cfg config.Config, dryRun bool) executil.Runner {
		if dryRun {
			return executil.DryRunner{Log: l}
		}
		return executil.NewExecRunner(l, cfg.Timeouts.Command.Std())
	}

	// fnNewFetcher returning nil lets provision build its HTTPS fetcher.
	fnNewFetcher = func(config.Config) installer.Fetcher { return nil }

	fnExecutable = os.Executable
)
