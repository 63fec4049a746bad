package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"llmhost/internal/config"
	"llmhost/internal/executil"
	"llmhost/internal/hardware"
	"llmhost/internal/installer"
)

type cliEnv struct {
	dir     string
	config  string
	logFile string
	runner  *executil.FakeRunner
	probe   hardware.StaticProbe
}

// withCLIStubs swaps the host-facing indirections for fakes and writes a
// config file that keeps every path inside a temp dir.
func withCLIStubs(t *testing.T) *cliEnv {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvLogFile, EnvLogLevel, EnvDryRun, EnvMetricsTextfile, "OLLAMA_NUM_PARALLEL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	env := &cliEnv{
		dir:     dir,
		config:  filepath.Join(dir, "llmhost.yaml"),
		logFile: filepath.Join(dir, "log", "llmhost.log"),
		runner:  executil.NewFakeRunner("apt-get", "ollama"),
		probe:   hardware.StaticProbe{Info: hardware.Info{TotalRAMBytes: 32 << 30, RAMGiB: 32, AVX2: true, OSFamily: "debian"}},
	}
	yaml := "log_file: " + env.logFile + "\n" +
		"script_copy_path: " + filepath.Join(dir, "sbin", "llmhost-setup") + "\n" +
		"env_file: " + filepath.Join(dir, "runner.env") + "\n"
	if err := os.WriteFile(env.config, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	src := filepath.Join(dir, "llmhost-bin")
	if err := os.WriteFile(src, []byte("bin"), 0o755); err != nil {
		t.Fatalf("write exe: %v", err)
	}

	origProbe, origRunner, origFetcher, origExe := fnNewProbe, fnNewRunner, fnNewFetcher, fnExecutable
	fnNewProbe = func(zerolog.Logger) hardware.Probe { return env.probe }
	fnNewRunner = func(zerolog.Logger, config.Config, bool) executil.Runner { return env.runner }
	fnNewFetcher = func(config.Config) installer.Fetcher { return nil }
	fnExecutable = func() (string, error) { return src, nil }
	t.Cleanup(func() {
		fnNewProbe, fnNewRunner, fnNewFetcher, fnExecutable = origProbe, origRunner, origFetcher, origExe
	})
	return env
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_HelpExit0(t *testing.T) {
	withCLIStubs(t)
	code, out, _ := runCLI("--help")
	if code != ExitOK {
		t.Fatalf("expected exit 0 for --help, got %d", code)
	}
	if !strings.Contains(out, "--install-models") {
		t.Fatalf("help should mention --install-models:\n%s", out)
	}
}

func TestRun_UsageErrorsExit2(t *testing.T) {
	withCLIStubs(t)
	cases := [][]string{
		{"wat"},
		{"--bogus"},
		{"--install-models"},
		{"tier"},
		{"tier", "--ram-gb", "-4"},
		{"tier", "--ram-gb", "16", "--policy", "nope"},
		{"tier", "--ram-gb", "sixteen"},
		{"catalog", "extra"},
		{"completion"},
	}
	for _, args := range cases {
		if code, _, _ := runCLI(args...); code != ExitUsage {
			t.Fatalf("%v: expected exit 2, got %d", args, code)
		}
	}
}

func TestRun_Tier(t *testing.T) {
	withCLIStubs(t)
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"tier", "--ram-gb", "8"}, "OLLAMA_NUM_PARALLEL=1 (low tier)"},
		{[]string{"tier", "--ram-gb", "24"}, "OLLAMA_NUM_PARALLEL=16 (high tier)"},
		{[]string{"tier", "--ram-gb", "24", "--policy", "linear"}, "OLLAMA_NUM_PARALLEL=5 (moderate tier)"},
		{[]string{"tier", "--ram-gb", "64"}, "OLLAMA_NUM_PARALLEL=16 (high tier)"},
	}
	for _, tc := range cases {
		code, out, _ := runCLI(tc.args...)
		if code != ExitOK || strings.TrimSpace(out) != tc.want {
			t.Fatalf("%v: code=%d out=%q, want %q", tc.args, code, out, tc.want)
		}
	}
}

func TestRun_Catalog(t *testing.T) {
	withCLIStubs(t)
	code, out, _ := runCLI("catalog")
	if code != ExitOK {
		t.Fatalf("catalog exit %d", code)
	}
	for _, m := range config.Default().Catalog {
		if !strings.Contains(out, m.Name) {
			t.Fatalf("catalog missing %s", m.Name)
		}
	}
	_, out, _ = runCLI("catalog", "--ram-gb", "8")
	if strings.Contains(out, "llama3.1:70b") || !strings.Contains(out, "phi3:mini") {
		t.Fatalf("filtered catalog:\n%s", out)
	}
}

func TestRun_DetectJSON(t *testing.T) {
	withCLIStubs(t)
	code, out, _ := runCLI("detect", "--json")
	if code != ExitOK {
		t.Fatalf("detect exit %d", code)
	}
	var got struct {
		Host     hardware.Info `json:"host"`
		Parallel int           `json:"parallel"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Host.RAMGiB != 32 || !got.Host.AVX2 || got.Parallel != 16 {
		t.Fatalf("detect = %+v", got)
	}
}

func TestRun_DetectProbeFailureExit1(t *testing.T) {
	env := withCLIStubs(t)
	env.probe = hardware.StaticProbe{Err: errors.New("no sysfs")}
	if code, _, _ := runCLI("detect"); code != ExitFatal {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRun_ProvisionSuccess(t *testing.T) {
	env := withCLIStubs(t)
	code, out, _ := runCLI("--config", env.config)
	if code != ExitOK {
		t.Fatalf("expected exit 0, got %d\n%s", code, out)
	}
	if !strings.Contains(out, "OLLAMA_NUM_PARALLEL=16") {
		t.Fatalf("summary missing tuning:\n%s", out)
	}
	b, err := os.ReadFile(env.logFile)
	if err != nil || !strings.Contains(string(b), "provisioning finished") {
		t.Fatalf("log file: %v\n%s", err, b)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "sbin", "llmhost-setup")); err != nil {
		t.Fatalf("script copy not saved: %v", err)
	}
}

func TestRun_ProvisionLogAppends(t *testing.T) {
	env := withCLIStubs(t)
	runCLI("--config", env.config)
	first, _ := os.ReadFile(env.logFile)
	runCLI("--config", env.config)
	second, _ := os.ReadFile(env.logFile)
	if len(second) <= len(first) || !bytes.HasPrefix(second, first) {
		t.Fatalf("log file should be appended to across runs")
	}
}

func TestRun_ProvisionFatalExit1(t *testing.T) {
	env := withCLIStubs(t)
	env.runner.Present = map[string]bool{}
	code, out, _ := runCLI("--config", env.config)
	if code != ExitFatal {
		t.Fatalf("missing package manager should exit 1, got %d", code)
	}
	if !strings.Contains(out, "FAILED") {
		t.Fatalf("summary should report the failure:\n%s", out)
	}
}

func TestRun_UnopenableLogFileExit1(t *testing.T) {
	env := withCLIStubs(t)
	blocker := filepath.Join(env.dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, errOut := runCLI("--config", env.config, "--log-file", filepath.Join(blocker, "x.log"))
	if code != ExitFatal {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if len(env.runner.Calls()) != 0 {
		t.Fatalf("no step should run without a log file")
	}
	if !strings.Contains(errOut, "open log file") {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestRun_InstallModelsAll(t *testing.T) {
	env := withCLIStubs(t)
	env.runner.Fail["ollama pull mistral:7b"] = errors.New("exit status 1")
	code, out, _ := runCLI("--config", env.config, "--install-models", "all")
	if code != ExitOK {
		t.Fatalf("pull failures must not change exit status, got %d", code)
	}
	pulls := 0
	for _, l := range env.runner.Lines() {
		if strings.HasPrefix(l, "ollama pull ") {
			pulls++
		}
	}
	if pulls != len(config.Default().Catalog) {
		t.Fatalf("pulled %d models, want %d", pulls, len(config.Default().Catalog))
	}
	if !strings.Contains(out, "Pull failures:   mistral:7b") {
		t.Fatalf("summary should list the failure:\n%s", out)
	}
}

func TestRun_InstallModelsUnknown(t *testing.T) {
	env := withCLIStubs(t)
	env.runner.Fail["ollama pull nonexistent:1b"] = errors.New("manifest unknown")
	code, _, _ := runCLI("--config", env.config, "--install-models", "nonexistent:1b")
	if code != ExitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var pulls []string
	for _, l := range env.runner.Lines() {
		if strings.HasPrefix(l, "ollama pull ") {
			pulls = append(pulls, l)
		}
	}
	if len(pulls) != 1 || pulls[0] != "ollama pull nonexistent:1b" {
		t.Fatalf("pulls = %v", pulls)
	}
}

func TestRun_EnvDefaults(t *testing.T) {
	env := withCLIStubs(t)
	t.Setenv(EnvConfig, env.config)
	t.Setenv(EnvDryRun, "true")
	var gotDry bool
	fnNewRunner = func(_ zerolog.Logger, _ config.Config, dry bool) executil.Runner {
		gotDry = dry
		return env.runner
	}
	code, out, _ := runCLI()
	if code != ExitOK {
		t.Fatalf("exit %d", code)
	}
	if !gotDry || !strings.Contains(out, "dry run") {
		t.Fatalf("LLMHOST_DRY_RUN not applied (dry=%t)", gotDry)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "sbin", "llmhost-setup")); err == nil {
		t.Fatalf("dry run must not save the script copy")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("LLMHOST_X", "")
	if envStr("LLMHOST_X", "def") != "def" || envBool("LLMHOST_X", true) != true {
		t.Fatalf("empty env should yield defaults")
	}
	t.Setenv("LLMHOST_X", "YES")
	if !envBool("LLMHOST_X", false) || envStr("LLMHOST_X", "def") != "YES" {
		t.Fatalf("env not read")
	}
	t.Setenv("LLMHOST_X", "0")
	if envBool("LLMHOST_X", true) {
		t.Fatalf("0 should be false")
	}
}
