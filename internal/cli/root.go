package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"llmhost/internal/config"
	"llmhost/internal/logging"
	"llmhost/internal/metrics"
	"llmhost/internal/models"
	"llmhost/internal/provision"
	"llmhost/internal/tuning"
)

// Flags collects persistent and root flags.
type Flags struct {
	ConfigPath      string
	LogFile         string
	LogLevel        string
	DryRun          bool
	MetricsTextfile string
	InstallModels   string
}

func defaultFlags() *Flags {
	return &Flags{
		ConfigPath:      envStr(EnvConfig, ""),
		LogFile:         envStr(EnvLogFile, ""),
		LogLevel:        envStr(EnvLogLevel, ""),
		DryRun:          envBool(EnvDryRun, false),
		MetricsTextfile: envStr(EnvMetricsTextfile, ""),
	}
}

// loadConfig reads the config file and applies flag overrides.
func (f *Flags) loadConfig() (config.Config, error) {
	cfg, err := config.LoadOrDefault(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if f.LogFile != "" {
		cfg.LogFile = f.LogFile
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.MetricsTextfile != "" {
		cfg.MetricsTextfile = f.MetricsTextfile
	}
	cfg.DryRun = cfg.DryRun || f.DryRun
	return cfg, cfg.ExpandPaths()
}

func buildRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := defaultFlags()
	root := &cobra.Command{
		Use:   "llmhost",
		Short: "Provision this machine as a local LLM host",
		Long: `llmhost installs base packages, the model runner and diagnostic tools,
tunes the runner's parallelism from detected RAM, recommends models and
optionally pulls them. Steps run in order; the first required failure stops
the run with exit status 1.`,
		Example:       "  llmhost\n  llmhost --install-models all\n  llmhost --install-models mistral:7b --dry-run",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unexpected argument %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, flags, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err: err} })

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", flags.ConfigPath, "Config file (.yaml, .json, .toml); defaults LLMHOST_CONFIG")
	pf.StringVar(&flags.LogFile, "log-file", flags.LogFile, "Append log to this file (defaults LLMHOST_LOG_FILE or "+config.DefaultLogFile+")")
	pf.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug|info|warn|error (defaults LLMHOST_LOG_LEVEL or info)")
	pf.BoolVar(&flags.DryRun, "dry-run", flags.DryRun, "Log commands instead of running them (defaults LLMHOST_DRY_RUN)")
	pf.StringVar(&flags.MetricsTextfile, "metrics-textfile", flags.MetricsTextfile, "Write Prometheus metrics to this textfile after the run")
	root.Flags().StringVar(&flags.InstallModels, "install-models", "", "Pull a model by name, or 'all' for the whole catalog")

	root.AddCommand(newTierCmd(flags, stdout), newCatalogCmd(flags, stdout), newDetectCmd(flags, stdout, stderr), newCompletionCmd(root, stdout))
	return root
}

func runProvision(cmd *cobra.Command, flags *Flags, stdout, stderr io.Writer) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: stderr})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closer.Close()

	exe, err := fnExecutable()
	if err != nil {
		log.Warn().Err(err).Msg("cannot resolve own executable; script copy disabled")
		exe = ""
	}
	log.Info().Bool("dry_run", cfg.DryRun).Str("log_file", cfg.LogFile).Msg("llmhost provisioning started")

	p, err := provision.New(provision.Options{
		Config:        cfg,
		Probe:         fnNewProbe(log),
		Runner:        fnNewRunner(log, cfg, cfg.DryRun),
		Fetcher:       fnNewFetcher(cfg),
		Metrics:       metrics.New(),
		Log:           log,
		Executable:    exe,
		InstallModels: flags.InstallModels,
		DryRun:        cfg.DryRun,
		Progress:      stderr,
	})
	if err != nil {
		return err
	}
	s, err := p.Run(cmd.Context())
	s.Print(stdout)
	if err != nil {
		return err
	}
	log.Info().Msg("llmhost provisioning finished")
	return nil
}

func newTierCmd(flags *Flags, stdout io.Writer) *cobra.Command {
	var (
		ramGB    int
		policy   string
		describe bool
	)
	cmd := &cobra.Command{
		Use:     "tier",
		Short:   "Print the runner parallelism for a RAM size",
		Example: "  llmhost tier --ram-gb 24\n  llmhost tier --ram-gb 24 --policy linear",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("ram-gb") {
				return usageErrorf("tier requires --ram-gb")
			}
			if ramGB < 0 {
				return usageErrorf("--ram-gb must not be negative")
			}
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if policy != "" {
				if policy != string(tuning.PolicyObserved) && policy != string(tuning.PolicyLinear) {
					return usageErrorf("--policy %q: want observed|linear", policy)
				}
				cfg.Tuning.Policy = policy
			}
			table := tuning.FromConfig(cfg.Tuning)
			n, tier := table.Parallel(ramGB)
			fmt.Fprintf(stdout, "%s=%d (%s tier)\n", cfg.Tuning.Variable, n, tier)
			if describe {
				fmt.Fprintln(stdout, table.Describe())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ramGB, "ram-gb", 0, "Total RAM in GiB")
	cmd.Flags().StringVar(&policy, "policy", "", "Override tuning policy: observed|linear")
	cmd.Flags().BoolVar(&describe, "describe", false, "Also print the thresholds in effect")
	return cmd
}

func newCatalogCmd(flags *Flags, stdout io.Writer) *cobra.Command {
	var ramGB int
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the model catalog, optionally only models that fit --ram-gb",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			list := cfg.Catalog
			if cmd.Flags().Changed("ram-gb") {
				list = models.Recommend(cfg.Catalog, ramGB)
			}
			table := tablewriter.NewTable(stdout,
				tablewriter.WithHeader([]string{"MODEL", "MIN RAM", "DESCRIPTION"}),
			)
			for _, m := range list {
				if err := table.Append([]string{m.Name, fmt.Sprintf("%d GiB", m.MinRAMGiB), m.Description}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVar(&ramGB, "ram-gb", 0, "Only list models that fit this much RAM")
	return cmd
}

func newDetectCmd(flags *Flags, stdout, stderr io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Print detected hardware and the tuning it implies",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Console: stderr})
			if err != nil {
				return err
			}
			defer closer.Close()
			info, err := fnNewProbe(log).Detect(cmd.Context())
			if err != nil {
				return fmt.Errorf("detect hardware: %w", err)
			}
			n, tier := tuning.FromConfig(cfg.Tuning).Parallel(info.RAMGiB)
			if asJSON {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Host     any    `json:"host"`
					Variable string `json:"variable"`
					Parallel int    `json:"parallel"`
					Tier     string `json:"tier"`
				}{info, cfg.Tuning.Variable, n, string(tier)})
			}
			fmt.Fprintln(stdout, info.String())
			fmt.Fprintf(stdout, "%s=%d (%s tier)\n", cfg.Tuning.Variable, n, tier)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newCompletionCmd(root *cobra.Command, stdout io.Writer) *cobra.Command {
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell", RunE: func(cmd *cobra.Command, args []string) error {
		return usageErrorf("completion requires a shell: bash|zsh|fish|powershell")
	}}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", Args: noArgs, RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", Args: noArgs, RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", Args: noArgs, RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(stdout, true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", Args: noArgs, RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(stdout) }})
	return completionCmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErrorf("%s: unexpected argument %q", cmd.CommandPath(), args[0])
	}
	return nil
}
