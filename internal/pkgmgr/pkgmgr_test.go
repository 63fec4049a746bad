package pkgmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmhost/internal/executil"
)

func TestBasePackages_AVX2Gate(t *testing.T) {
	base := []string{"curl", "git"}
	accel := []string{"libopenblas-dev"}
	assert.Equal(t, base, BasePackages(base, accel, false))
	assert.Equal(t, []string{"curl", "git", "libopenblas-dev"}, BasePackages(base, accel, true))
	assert.Len(t, base, 2, "input slice mutated")
}

func TestTranslate(t *testing.T) {
	got := Pacman.Translate([]string{"curl", "build-essential", "python3", "python3-pip", "libopenblas-dev"})
	assert.Equal(t, []string{"curl", "base-devel", "python", "python-pip", "openblas", "cblas"}, got)
	assert.Equal(t, []string{"gcc", "gcc-c++", "make"}, DNF.Translate([]string{"build-essential", "gcc"}), "dnf translate should dedupe")
	assert.Equal(t, []string{"build-essential"}, AptGet.Translate([]string{"build-essential"}))
}

func TestDetect(t *testing.T) {
	r := executil.NewFakeRunner("yum", "pacman")
	m, err := Detect("redhat", r)
	require.NoError(t, err)
	assert.Equal(t, "yum", m.Name, "redhat without dnf")

	m, err = Detect("debian", r)
	require.NoError(t, err)
	assert.Equal(t, "yum", m.Name, "missing family manager falls back to PATH order")

	_, err = Detect("debian", executil.NewFakeRunner())
	require.ErrorIs(t, err, ErrNoPackageManager)
}

func TestUpdateAndInstall(t *testing.T) {
	r := executil.NewFakeRunner("apt-get")
	ctx := context.Background()
	require.NoError(t, AptGet.Update(ctx, r))
	require.NoError(t, AptGet.Install(ctx, r, "curl", "git"))
	require.NoError(t, AptGet.Install(ctx, r), "empty install")

	calls := r.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Sudo)
	assert.Equal(t, "noninteractive", calls[1].Env["DEBIAN_FRONTEND"])
	assert.Equal(t, "apt-get install -y --no-install-recommends curl git", r.Lines()[1])

	r.Fail["apt-get update"] = errors.New("mirror down")
	require.Error(t, AptGet.Update(ctx, r))
}

func TestFamilyFromOSRelease(t *testing.T) {
	cases := map[string]string{
		"ID=ubuntu\nID_LIKE=debian\n":                  "debian",
		"ID=\"rocky\"\nID_LIKE=\"rhel centos fedora\"": "rhel",
		"ID=endeavouros\nID_LIKE=arch\n":               "arch",
		"ID=arch\n":                                    "arch",
		"ID=opensuse-tumbleweed\n":                     "suse",
		"# comment\nID=alpine\n":                       "alpine",
		"":                                             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, FamilyFromOSRelease(in), "FamilyFromOSRelease(%q)", in)
	}
}
