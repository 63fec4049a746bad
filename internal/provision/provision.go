// Package provision runs the ordered provisioning steps and decides, per
// step, whether a failure aborts the run or is logged and skipped.
package provision

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"llmhost/internal/common/fsutil"
	"llmhost/internal/config"
	"llmhost/internal/envfile"
	"llmhost/internal/executil"
	"llmhost/internal/hardware"
	"llmhost/internal/installer"
	"llmhost/internal/metrics"
	"llmhost/internal/models"
	"llmhost/internal/pkgmgr"
	"llmhost/internal/tools"
	"llmhost/internal/tuning"
)

// Step names in run order.
const (
	StepSaveCopy       = "save-copy"
	StepDetect         = "detect"
	StepPackageManager = "package-manager"
	StepPackages       = "packages"
	StepRunner         = "runner"
	StepTuning         = "tuning"
	StepTools          = "tools"
	StepAssistant      = "assistant"
	StepRecommend      = "recommend"
	StepModels         = "models"
)

// Outcome is how a step ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeWarning Outcome = "warning"
	OutcomeFailed  Outcome = "failed"
)

// StepResult records one executed step.
type StepResult struct {
	Name     string
	Outcome  Outcome
	Detail   string
	Duration time.Duration
	Err      error
}

// Options wires a Provisioner. Probe and Runner are required; the rest
// default from Config.
type Options struct {
	Config    config.Config
	Probe     hardware.Probe
	Runner    executil.Runner
	Fetcher   installer.Fetcher
	Puller    models.Puller
	Publisher EventPublisher
	Metrics   *metrics.Recorder
	Log       zerolog.Logger

	// Executable is copied to Config.ScriptCopyPath on first run; empty skips the copy.
	Executable string
	// InstallModels is the --install-models argument; empty pulls nothing.
	InstallModels string
	// DryRun skips file writes and the installer download.
	DryRun bool
	// Progress receives the installer download bar when non-nil.
	Progress io.Writer
	// TempDir stages the installer script.
	TempDir string
	// OSFamily is consulted when the probe reports no OS family.
	OSFamily func() string
}

// Provisioner executes one provisioning run.
type Provisioner struct {
	opts Options
	cfg  config.Config
	log  zerolog.Logger
	pub  EventPublisher
	mgr  pkgmgr.Manager
}

// New validates opts and fills defaults.
func New(opts Options) (*Provisioner, error) {
	if opts.Probe == nil {
		return nil, errors.New("provision: hardware probe is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("provision: command runner is required")
	}
	cfg := opts.Config
	if opts.Fetcher == nil {
		opts.Fetcher = installer.HTTPFetcher{
			Timeout:  cfg.Timeouts.Download.Std(),
			MaxBytes: cfg.Runner.MaxInstallerBytes,
			Progress: opts.Progress,
		}
	}
	if opts.Puller == nil {
		opts.Puller = NewPuller(cfg, opts.Runner, opts.DryRun, opts.Log)
	}
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	if opts.OSFamily == nil {
		opts.OSFamily = pkgmgr.ReadOSFamily
	}
	return &Provisioner{opts: opts, cfg: cfg, log: opts.Log, pub: opts.Publisher}, nil
}

// NewPuller picks the pull transport from configuration. Dry runs always go
// through the runner so nothing reaches the network.
func NewPuller(cfg config.Config, r executil.Runner, dryRun bool, l zerolog.Logger) models.Puller {
	if cfg.Runner.PullMethod == "api" && !dryRun {
		return models.APIPuller{
			BaseURL: cfg.Runner.APIURL,
			Client:  &http.Client{},
			Timeout: cfg.Timeouts.Pull.Std(),
			Log:     l,
		}
	}
	return models.CLIPuller{Runner: r, Binary: cfg.Runner.Binary, Timeout: cfg.Timeouts.Pull.Std()}
}

type stepFunc func(ctx context.Context, s *Summary) (Outcome, string, error)

func (p *Provisioner) steps() []struct {
	name string
	fn   stepFunc
} {
	return []struct {
		name string
		fn   stepFunc
	}{
		{StepSaveCopy, p.saveCopy},
		{StepDetect, p.detect},
		{StepPackageManager, p.packageManager},
		{StepPackages, p.packages},
		{StepRunner, p.runner},
		{StepTuning, p.tuning},
		{StepTools, p.tools},
		{StepAssistant, p.assistant},
		{StepRecommend, p.recommend},
		{StepModels, p.models},
	}
}

// Run executes every step in order. The returned error is a *StepError for
// the first required step that failed; the Summary covers the steps that ran.
func (p *Provisioner) Run(ctx context.Context) (Summary, error) {
	s := Summary{StartedAt: time.Now(), DryRun: p.opts.DryRun}
	defer p.writeMetrics()

	for _, st := range p.steps() {
		if err := ctx.Err(); err != nil {
			se := &StepError{Step: st.name, Class: ClassExecution, Err: errors.Wrap(err, "run interrupted")}
			s.finish(se)
			return s, se
		}
		l := p.log.With().Str("step", st.name).Logger()
		l.Debug().Msg("step started")
		p.pub.Publish(Event{Name: EventStepStarted, Step: st.name})

		start := time.Now()
		outcome, detail, err := st.fn(ctx, &s)
		d := time.Since(start)

		if err != nil {
			var se *StepError
			if !errors.As(err, &se) {
				se = &StepError{Class: ClassExecution, Err: err}
			}
			se.Step = st.name
			s.Steps = append(s.Steps, StepResult{Name: st.name, Outcome: OutcomeFailed, Detail: detail, Duration: d, Err: se.Err})
			p.opts.Metrics.ObserveStep(st.name, string(OutcomeFailed), d)
			p.pub.Publish(Event{Name: EventStepFailed, Step: st.name, Fields: map[string]any{"class": string(se.Class), "error": se.Err.Error()}})
			l.Error().Err(se.Err).Str("class", string(se.Class)).Msg("step failed; aborting")
			s.finish(se)
			return s, se
		}

		s.Steps = append(s.Steps, StepResult{Name: st.name, Outcome: outcome, Detail: detail, Duration: d})
		p.opts.Metrics.ObserveStep(st.name, string(outcome), d)
		p.pub.Publish(Event{Name: EventStepFinished, Step: st.name, Fields: map[string]any{"outcome": string(outcome), "detail": detail}})
		ev := l.Info()
		if outcome == OutcomeWarning {
			ev = l.Warn()
		}
		ev.Str("outcome", string(outcome)).Dur("took", d).Msg(detail)
	}
	s.finish(nil)
	p.pub.Publish(Event{Name: EventRunFinished, Fields: map[string]any{"steps": len(s.Steps)}})
	return s, nil
}

func (p *Provisioner) writeMetrics() {
	path := p.cfg.MetricsTextfile
	if path == "" || p.opts.DryRun {
		return
	}
	if err := p.opts.Metrics.WriteTextfile(path); err != nil {
		p.log.Warn().Err(err).Str("path", path).Msg("metrics textfile not written")
	}
}

func (p *Provisioner) saveCopy(_ context.Context, s *Summary) (Outcome, string, error) {
	dst := p.cfg.ScriptCopyPath
	if p.opts.Executable == "" || dst == "" {
		return OutcomeSkipped, "no script copy configured", nil
	}
	if p.opts.DryRun {
		return OutcomeSkipped, "dry-run: would copy to " + dst, nil
	}
	copied, err := fsutil.CopyOnce(p.opts.Executable, dst, 0o755)
	if err != nil {
		return OutcomeWarning, "script copy not saved: " + err.Error(), nil
	}
	s.ScriptCopy = dst
	if !copied {
		return OutcomeSkipped, dst + " already exists; left untouched", nil
	}
	s.ScriptCopySaved = true
	return OutcomeOK, "saved copy to " + dst, nil
}

func (p *Provisioner) detect(ctx context.Context, s *Summary) (Outcome, string, error) {
	info, err := p.opts.Probe.Detect(ctx)
	if err != nil {
		return OutcomeFailed, "", fail(ClassPrerequisite, errors.Wrap(err, "detect hardware"))
	}
	if info.OSFamily == "" {
		info.OSFamily = p.opts.OSFamily()
	}
	s.Host = info
	p.opts.Metrics.SetRAM(info.RAMGiB)
	return OutcomeOK, info.String(), nil
}

func (p *Provisioner) packageManager(_ context.Context, s *Summary) (Outcome, string, error) {
	m, err := pkgmgr.Detect(s.Host.OSFamily, p.opts.Runner)
	if err != nil {
		return OutcomeFailed, "", fail(ClassPrerequisite, errors.Wrapf(err, "package manager missing (os family %q)", s.Host.OSFamily))
	}
	p.mgr = m
	s.PackageManager = m.Name
	return OutcomeOK, "using " + m.Name, nil
}

func (p *Provisioner) packages(ctx context.Context, s *Summary) (Outcome, string, error) {
	pkgs := pkgmgr.BasePackages(p.cfg.Packages.Base, p.cfg.Packages.Accel, s.Host.AVX2)
	if !s.Host.AVX2 && len(p.cfg.Packages.Accel) > 0 {
		p.log.Info().Strs("skipped", p.cfg.Packages.Accel).Msg("AVX2 not detected; acceleration packages excluded")
	}
	if err := p.mgr.Update(ctx, p.opts.Runner); err != nil {
		return OutcomeFailed, "", fail(ClassExecution, errors.Wrap(err, "refresh package index"))
	}
	if err := p.mgr.Install(ctx, p.opts.Runner, pkgs...); err != nil {
		return OutcomeFailed, "", fail(ClassExecution, errors.Wrap(err, "install base packages"))
	}
	s.Packages = pkgs
	return OutcomeOK, "installed " + strings.Join(pkgs, " "), nil
}

func (p *Provisioner) runner(ctx context.Context, s *Summary) (Outcome, string, error) {
	bin := p.cfg.Runner.Binary
	if p.opts.DryRun {
		if _, err := p.opts.Runner.LookPath(bin); err != nil {
			return OutcomeSkipped, "dry-run: would download and run " + p.cfg.Runner.InstallerURL, nil
		}
	}
	in := installer.Installer{
		Runner:  p.opts.Runner,
		Fetcher: p.opts.Fetcher,
		Log:     p.log,
		Binary:  bin,
		URL:     p.cfg.Runner.InstallerURL,
		Digest:  p.cfg.Runner.InstallerDigest,
		Timeout: p.cfg.Timeouts.Command.Std(),
		TempDir: p.opts.TempDir,
	}
	res, err := in.Install(ctx)
	s.Runner = res
	switch {
	case err == nil:
	case installer.IsIntegrity(err):
		return OutcomeFailed, "", fail(ClassIntegrity, err)
	case errors.Is(err, installer.ErrFetch):
		return OutcomeFailed, "", fail(ClassNetwork, err)
	default:
		return OutcomeFailed, "", fail(ClassExecution, err)
	}
	switch {
	case res.AlreadyInstalled:
		return OutcomeSkipped, bin + " already installed at " + res.BinaryPath, nil
	case !res.Verified:
		return OutcomeWarning, "installed " + bin + " without digest verification (" + res.Digest.String() + ")", nil
	default:
		return OutcomeOK, "installed " + bin + " (" + res.Digest.String() + ")", nil
	}
}

func (p *Provisioner) tuning(_ context.Context, s *Summary) (Outcome, string, error) {
	table := tuning.FromConfig(p.cfg.Tuning)
	n, tier := table.Parallel(s.Host.RAMGiB)
	s.TuningVariable = p.cfg.Tuning.Variable
	s.Parallel = n
	s.Tier = tier
	p.opts.Metrics.SetTuning(n)

	detail := p.cfg.Tuning.Variable + "=" + itoa(n) + " (" + string(tier) + " tier)"
	path := p.cfg.EnvFile
	if p.opts.DryRun {
		path = ""
	}
	if err := envfile.Set(path, p.cfg.Tuning.Variable, n); err != nil {
		return OutcomeWarning, detail + "; env file not written: " + err.Error(), nil
	}
	s.EnvFile = path
	return OutcomeOK, detail, nil
}

func (p *Provisioner) toolInstaller() tools.Installer {
	return tools.Installer{Runner: p.opts.Runner, Manager: p.mgr, Log: p.log}
}

func (p *Provisioner) tools(ctx context.Context, s *Summary) (Outcome, string, error) {
	results, err := p.toolInstaller().InstallAll(ctx, p.cfg.Tools)
	s.Tools = results
	if err != nil {
		return OutcomeFailed, "", fail(ClassExecution, err)
	}
	if failed := failedTools(results); len(failed) > 0 {
		return OutcomeWarning, "optional tools skipped: " + strings.Join(failed, ", "), nil
	}
	return OutcomeOK, itoa(len(results)) + " tools ready", nil
}

func (p *Provisioner) assistant(ctx context.Context, s *Summary) (Outcome, string, error) {
	a := p.cfg.Assistant
	if a.Name == "" || a.Disabled {
		return OutcomeSkipped, "no assistant configured", nil
	}
	res, err := p.toolInstaller().Install(ctx, a)
	s.Assistant = &res
	if err != nil {
		return OutcomeFailed, "", fail(ClassExecution, err)
	}
	if res.Outcome == tools.OutcomeFailed {
		return OutcomeWarning, a.Name + " not installed", nil
	}
	return OutcomeOK, a.Name + " " + string(res.Outcome), nil
}

func (p *Provisioner) recommend(_ context.Context, s *Summary) (Outcome, string, error) {
	s.Recommendations = models.Recommend(p.cfg.Catalog, s.Host.RAMGiB)
	if len(s.Recommendations) == 0 {
		return OutcomeWarning, "no catalog model fits " + itoa(s.Host.RAMGiB) + " GiB", nil
	}
	return OutcomeOK, itoa(len(s.Recommendations)) + " models fit " + itoa(s.Host.RAMGiB) + " GiB", nil
}

func (p *Provisioner) models(ctx context.Context, s *Summary) (Outcome, string, error) {
	names := models.Select(p.cfg.Catalog, p.opts.InstallModels)
	if len(names) == 0 {
		return OutcomeSkipped, "no models requested", nil
	}
	rep := models.PullAll(ctx, p.opts.Puller, p.cfg.Catalog, names, p.log)
	s.Pulls = &rep
	for _, r := range rep.Results {
		p.opts.Metrics.ObservePull(r.Err == nil)
	}
	if err := ctx.Err(); err != nil {
		return OutcomeFailed, "", fail(ClassExecution, errors.Wrap(err, "model pulls interrupted"))
	}
	if failed := rep.Failed(); len(failed) > 0 {
		return OutcomeWarning, itoa(len(failed)) + " of " + itoa(len(names)) + " model pulls failed", nil
	}
	return OutcomeOK, "pulled " + strings.Join(names, ", "), nil
}

func failedTools(results []tools.Result) []string {
	var out []string
	for _, r := range results {
		if r.Outcome == tools.OutcomeFailed {
			out = append(out, r.Name)
		}
	}
	return out
}
