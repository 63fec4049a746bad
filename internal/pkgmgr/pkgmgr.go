// Package pkgmgr drives the host's OS package manager.
package pkgmgr

import (
	"context"
	"errors"
	"fmt"

	"llmhost/internal/executil"
)

// ErrNoPackageManager is returned by Detect when no supported manager exists.
var ErrNoPackageManager = errors.New("no supported package manager found")

// Manager describes how to drive one package manager binary.
type Manager struct {
	Name        string
	Binary      string
	UpdateArgs  []string
	InstallArgs []string
	Env         map[string]string
	// aliases maps Debian package names to this manager's names.
	aliases map[string][]string
}

var (
	AptGet = Manager{
		Name: "apt", Binary: "apt-get",
		UpdateArgs:  []string{"update"},
		InstallArgs: []string{"install", "-y", "--no-install-recommends"},
		Env:         map[string]string{"DEBIAN_FRONTEND": "noninteractive"},
	}
	DNF = Manager{
		Name: "dnf", Binary: "dnf",
		UpdateArgs:  []string{"makecache", "-y"},
		InstallArgs: []string{"install", "-y"},
		aliases:     rpmAliases,
	}
	Yum = Manager{
		Name: "yum", Binary: "yum",
		UpdateArgs:  []string{"makecache", "-y"},
		InstallArgs: []string{"install", "-y"},
		aliases:     rpmAliases,
	}
	Pacman = Manager{
		Name: "pacman", Binary: "pacman",
		UpdateArgs:  []string{"-Sy", "--noconfirm"},
		InstallArgs: []string{"-S", "--needed", "--noconfirm"},
		aliases: map[string][]string{
			"build-essential": {"base-devel"},
			"python3":         {"python"},
			"python3-pip":     {"python-pip"},
			"libopenblas-dev": {"openblas", "cblas"},
			"lm-sensors":      {"lm_sensors"},
		},
	}
	Zypper = Manager{
		Name: "zypper", Binary: "zypper",
		UpdateArgs:  []string{"--non-interactive", "refresh"},
		InstallArgs: []string{"--non-interactive", "install"},
		aliases: map[string][]string{
			"build-essential": {"gcc", "gcc-c++", "make"},
			"libopenblas-dev": {"openblas-devel"},
			"lm-sensors":      {"sensors"},
		},
	}
	Apk = Manager{
		Name: "apk", Binary: "apk",
		UpdateArgs:  []string{"update"},
		InstallArgs: []string{"add", "--no-cache"},
		aliases: map[string][]string{
			"build-essential": {"build-base"},
			"python3-pip":     {"py3-pip"},
			"libopenblas-dev": {"openblas-dev"},
		},
	}
)

var rpmAliases = map[string][]string{
	"build-essential": {"gcc", "gcc-c++", "make"},
	"libopenblas-dev": {"openblas-devel"},
	"lm-sensors":      {"lm_sensors"},
}

// All lists managers in PATH-probe order.
var All = []Manager{AptGet, DNF, Yum, Pacman, Zypper, Apk}

// byFamily maps OS family names (go-sysinfo / os-release ID_LIKE) to managers.
var byFamily = map[string][]Manager{
	"debian": {AptGet},
	"ubuntu": {AptGet},
	"redhat": {DNF, Yum},
	"rhel":   {DNF, Yum},
	"fedora": {DNF, Yum},
	"arch":   {Pacman},
	"suse":   {Zypper},
	"alpine": {Apk},
}

// Translate maps Debian package names to this manager's names, preserving
// order and dropping duplicates.
func (m Manager) Translate(pkgs []string) []string {
	seen := make(map[string]bool, len(pkgs))
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		names, ok := m.aliases[p]
		if !ok {
			names = []string{p}
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// Update refreshes the package index.
func (m Manager) Update(ctx context.Context, r executil.Runner) error {
	if err := r.Run(ctx, executil.Cmd{Path: m.Binary, Args: m.UpdateArgs, Env: m.Env, Sudo: true}); err != nil {
		return fmt.Errorf("%s update: %w", m.Name, err)
	}
	return nil
}

// Install installs pkgs (Debian names) in one transaction.
func (m Manager) Install(ctx context.Context, r executil.Runner, pkgs ...string) error {
	names := m.Translate(pkgs)
	if len(names) == 0 {
		return nil
	}
	args := append(append([]string(nil), m.InstallArgs...), names...)
	if err := r.Run(ctx, executil.Cmd{Path: m.Binary, Args: args, Env: m.Env, Sudo: true}); err != nil {
		return fmt.Errorf("%s install %v: %w", m.Name, names, err)
	}
	return nil
}

// Detect picks the manager for osFamily when its binary exists, otherwise the
// first supported binary on PATH.
func Detect(osFamily string, r executil.Runner) (Manager, error) {
	for _, m := range byFamily[osFamily] {
		if _, err := r.LookPath(m.Binary); err == nil {
			return m, nil
		}
	}
	for _, m := range All {
		if _, err := r.LookPath(m.Binary); err == nil {
			return m, nil
		}
	}
	return Manager{}, ErrNoPackageManager
}

// BasePackages returns the baseline packages plus the acceleration packages
// when the CPU reports AVX2.
func BasePackages(base, accel []string, avx2 bool) []string {
	out := append([]string(nil), base...)
	if avx2 {
		out = append(out, accel...)
	}
	return out
}
