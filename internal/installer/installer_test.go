package installer

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmhost/internal/executil"
)

var script = []byte("#!/bin/sh\necho installing\n")

type stubFetcher struct {
	body []byte
	err  error
	n    int
}

func (s *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	s.n++
	return s.body, s.err
}

func newInstaller(r executil.Runner, f Fetcher, dgst string) Installer {
	return Installer{
		Runner:  r,
		Fetcher: f,
		Log:     zerolog.Nop(),
		Binary:  "ollama",
		URL:     "https://example.invalid/install.sh",
		Digest:  dgst,
		Timeout: time.Minute,
	}
}

func TestVerify(t *testing.T) {
	good := digest.FromBytes(script).String()
	d, err := Verify(script, good)
	require.NoError(t, err)
	assert.Equal(t, good, d.String())

	_, err = Verify(script, "sha256:"+strings.Repeat("0", 64))
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.True(t, IsIntegrity(err))

	_, err = Verify(script, "placeholder")
	assert.True(t, IsIntegrity(err), "unparseable digest counts as integrity failure: %v", err)

	d, err = Verify(script, "")
	assert.ErrorIs(t, err, ErrNoDigest)
	assert.Equal(t, digest.FromBytes(script), d)
}

func TestInstall_SkipsWhenPresent(t *testing.T) {
	r := executil.NewFakeRunner("ollama")
	f := &stubFetcher{body: script}
	res, err := newInstaller(r, f, "").Install(context.Background())
	require.NoError(t, err)
	assert.True(t, res.AlreadyInstalled)
	assert.Zero(t, f.n, "fetch must not run when already installed")
	assert.Empty(t, r.Calls())
}

func TestInstall_VerifiesAndRuns(t *testing.T) {
	r := executil.NewFakeRunner()
	var staged []byte
	r.OnRun = func(c executil.Cmd) {
		staged, _ = os.ReadFile(c.Args[0])
		r.SetPresent("ollama")
	}
	res, err := newInstaller(r, &stubFetcher{body: script}, digest.FromBytes(script).String()).Install(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, "/usr/bin/ollama", res.BinaryPath)
	assert.Equal(t, script, staged)
	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sh", calls[0].Path)
	assert.Equal(t, time.Minute, calls[0].Timeout)
	_, statErr := os.Stat(calls[0].Args[0])
	assert.True(t, os.IsNotExist(statErr), "staged script should be removed")
}

func TestInstall_NoDigestStillRuns(t *testing.T) {
	r := executil.NewFakeRunner()
	r.OnRun = func(executil.Cmd) { r.SetPresent("ollama") }
	res, err := newInstaller(r, &stubFetcher{body: script}, "").Install(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestInstall_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := newInstaller(executil.NewFakeRunner(), &stubFetcher{err: errors.New("dns")}, "").Install(ctx)
	assert.ErrorIs(t, err, ErrFetch)

	r := executil.NewFakeRunner()
	_, err = newInstaller(r, &stubFetcher{body: script}, "sha256:"+strings.Repeat("a", 64)).Install(ctx)
	assert.True(t, IsIntegrity(err))
	assert.Empty(t, r.Calls(), "mismatched installer must not execute")

	r = executil.NewFakeRunner()
	r.Fail["sh"] = errors.New("exit status 1")
	_, err = newInstaller(r, &stubFetcher{body: script}, "").Install(ctx)
	assert.ErrorIs(t, err, ErrExecute)

	r = executil.NewFakeRunner()
	_, err = newInstaller(r, &stubFetcher{body: script}, "").Install(ctx)
	assert.ErrorIs(t, err, ErrExecute, "binary missing after install")
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/install.sh":
			_, _ = w.Write(script)
		case "/big.sh":
			_, _ = w.Write(bytes.Repeat([]byte("x"), 2048))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var progress bytes.Buffer
	f := HTTPFetcher{Client: srv.Client(), Timeout: 5 * time.Second, MaxBytes: 1024, Progress: &progress}
	b, err := f.Fetch(context.Background(), srv.URL+"/install.sh")
	require.NoError(t, err)
	assert.Equal(t, script, b)

	_, err = f.Fetch(context.Background(), srv.URL+"/big.sh")
	assert.ErrorContains(t, err, "exceeds")

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.sh")
	assert.ErrorContains(t, err, "404")

	_, err = f.Fetch(context.Background(), "http://example.com/install.sh")
	assert.ErrorContains(t, err, "only https")
}
