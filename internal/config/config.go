package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds every tunable of a provisioning run. The zero value is not
// useful; start from Default() and overlay a file with Load.
type Config struct {
	LogFile         string `json:"log_file" yaml:"log_file" toml:"log_file"`
	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`
	ScriptCopyPath  string `json:"script_copy_path" yaml:"script_copy_path" toml:"script_copy_path"`
	EnvFile         string `json:"env_file" yaml:"env_file" toml:"env_file"`
	MetricsTextfile string `json:"metrics_textfile" yaml:"metrics_textfile" toml:"metrics_textfile"`
	DryRun          bool   `json:"dry_run" yaml:"dry_run" toml:"dry_run"`

	Packages  Packages `json:"packages" yaml:"packages" toml:"packages"`
	Runner    Runner   `json:"runner" yaml:"runner" toml:"runner"`
	Tuning    Tuning   `json:"tuning" yaml:"tuning" toml:"tuning"`
	Tools     []Tool   `json:"tools" yaml:"tools" toml:"tools"`
	Assistant Tool     `json:"assistant" yaml:"assistant" toml:"assistant"`
	Catalog   []Model  `json:"catalog" yaml:"catalog" toml:"catalog"`
	Timeouts  Timeouts `json:"timeouts" yaml:"timeouts" toml:"timeouts"`
}

// Packages lists OS packages by their Debian names; pkgmgr translates them
// for other package managers.
type Packages struct {
	Base []string `json:"base" yaml:"base" toml:"base"`
	// Accel is installed only on CPUs reporting AVX2.
	Accel []string `json:"accel" yaml:"accel" toml:"accel"`
}

// Runner describes the third-party model runner and how to install it.
type Runner struct {
	Binary            string `json:"binary" yaml:"binary" toml:"binary"`
	InstallerURL      string `json:"installer_url" yaml:"installer_url" toml:"installer_url"`
	InstallerDigest   string `json:"installer_digest" yaml:"installer_digest" toml:"installer_digest"`
	MaxInstallerBytes int64  `json:"max_installer_bytes" yaml:"max_installer_bytes" toml:"max_installer_bytes"`
	APIURL            string `json:"api_url" yaml:"api_url" toml:"api_url"`
	// PullMethod is "cli" (run "<binary> pull") or "api" (POST /api/pull).
	PullMethod string `json:"pull_method" yaml:"pull_method" toml:"pull_method"`
}

// Tuning maps total RAM to the runner's parallel request setting.
type Tuning struct {
	Variable string `json:"variable" yaml:"variable" toml:"variable"`
	// Policy is "observed" or "linear". See tuning.Parallel.
	Policy      string `json:"policy" yaml:"policy" toml:"policy"`
	LowRAMGiB   int    `json:"low_ram_gib" yaml:"low_ram_gib" toml:"low_ram_gib"`
	HighRAMGiB  int    `json:"high_ram_gib" yaml:"high_ram_gib" toml:"high_ram_gib"`
	MinParallel int    `json:"min_parallel" yaml:"min_parallel" toml:"min_parallel"`
	MaxParallel int    `json:"max_parallel" yaml:"max_parallel" toml:"max_parallel"`
	Divisor     int    `json:"divisor" yaml:"divisor" toml:"divisor"`
	Offset      int    `json:"offset" yaml:"offset" toml:"offset"`
}

// Tool is an auxiliary program installed after the runner.
type Tool struct {
	Name     string   `json:"name" yaml:"name" toml:"name"`
	Binary   string   `json:"binary" yaml:"binary" toml:"binary"`
	Packages []string `json:"packages" yaml:"packages" toml:"packages"`
	// Fallback is a command line tried when the package install fails.
	Fallback string `json:"fallback" yaml:"fallback" toml:"fallback"`
	Required bool   `json:"required" yaml:"required" toml:"required"`
	Disabled bool   `json:"disabled" yaml:"disabled" toml:"disabled"`
}

// Model is an entry of the model catalog.
type Model struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	MinRAMGiB   int    `json:"min_ram_gib" yaml:"min_ram_gib" toml:"min_ram_gib"`
	Description string `json:"description" yaml:"description" toml:"description"`
}

// Timeouts bound every blocking subprocess call and download.
type Timeouts struct {
	Command  Duration `json:"command" yaml:"command" toml:"command"`
	Download Duration `json:"download" yaml:"download" toml:"download"`
	Pull     Duration `json:"pull" yaml:"pull" toml:"pull"`
}

// Duration is a time.Duration that reads and writes as "90s", "30m" etc.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Validate rejects configurations that cannot drive a run.
func (c Config) Validate() error {
	var errs []error
	if c.LogFile == "" {
		errs = append(errs, errors.New("log_file is empty"))
	}
	if len(c.Packages.Base) == 0 {
		errs = append(errs, errors.New("packages.base is empty"))
	}
	if c.Runner.Binary == "" {
		errs = append(errs, errors.New("runner.binary is empty"))
	}
	if c.Runner.InstallerURL == "" {
		errs = append(errs, errors.New("runner.installer_url is empty"))
	}
	switch c.Runner.PullMethod {
	case "cli", "api":
	default:
		errs = append(errs, fmt.Errorf("runner.pull_method %q: want cli|api", c.Runner.PullMethod))
	}
	switch c.Tuning.Policy {
	case "observed", "linear":
	default:
		errs = append(errs, fmt.Errorf("tuning.policy %q: want observed|linear", c.Tuning.Policy))
	}
	if c.Tuning.Variable == "" {
		errs = append(errs, errors.New("tuning.variable is empty"))
	}
	if c.Tuning.LowRAMGiB <= 0 || c.Tuning.HighRAMGiB <= c.Tuning.LowRAMGiB {
		errs = append(errs, fmt.Errorf("tuning thresholds must satisfy 0 < low (%d) < high (%d)", c.Tuning.LowRAMGiB, c.Tuning.HighRAMGiB))
	}
	if c.Tuning.Divisor <= 0 {
		errs = append(errs, errors.New("tuning.divisor must be positive"))
	}
	if c.Tuning.MinParallel <= 0 || c.Tuning.MaxParallel < c.Tuning.MinParallel {
		errs = append(errs, errors.New("tuning parallel bounds must satisfy 0 < min <= max"))
	}
	if c.Timeouts.Command <= 0 || c.Timeouts.Download <= 0 || c.Timeouts.Pull <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	seen := make(map[string]bool, len(c.Catalog))
	for _, m := range c.Catalog {
		if m.Name == "" {
			errs = append(errs, errors.New("catalog entry with empty name"))
			continue
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Errorf("duplicate catalog model %q", m.Name))
		}
		seen[m.Name] = true
	}
	for _, t := range c.Tools {
		if t.Name == "" {
			errs = append(errs, errors.New("tool entry with empty name"))
		}
	}
	return errors.Join(errs...)
}
