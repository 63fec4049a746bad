package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmhost/internal/config"
	"llmhost/internal/executil"
)

func TestRecommend(t *testing.T) {
	catalog := config.Default().Catalog
	got := Recommend(catalog, 8)
	require.Len(t, got, 3)
	assert.Equal(t, 8, got[0].MinRAMGiB)
	assert.Equal(t, "llama3.2:1b", got[len(got)-1].Name)

	assert.Empty(t, Recommend(catalog, 2))
	assert.Len(t, Recommend(catalog, 64), len(catalog))
	assert.Equal(t, "llama3.1:70b", Recommend(catalog, 64)[0].Name)
}

func TestSelect(t *testing.T) {
	catalog := config.Default().Catalog
	assert.Len(t, Select(catalog, "all"), len(catalog))
	assert.Len(t, Select(catalog, "ALL"), len(catalog))
	assert.Equal(t, []string{"mistral:7b"}, Select(catalog, "mistral:7b"))
	assert.Equal(t, []string{"made-up:1b"}, Select(catalog, "made-up:1b"))
	assert.Nil(t, Select(catalog, " "))
}

func TestLookup(t *testing.T) {
	m, ok := Lookup(config.Default().Catalog, "phi3:mini")
	assert.True(t, ok)
	assert.Equal(t, 8, m.MinRAMGiB)
	_, ok = Lookup(config.Default().Catalog, "nope")
	assert.False(t, ok)
}

type scriptedPuller struct {
	fail  map[string]bool
	calls []string
}

func (s *scriptedPuller) Pull(_ context.Context, name string) error {
	s.calls = append(s.calls, name)
	if s.fail[name] {
		return errors.New("manifest unknown")
	}
	return nil
}

func TestPullAll_ContinuesPastFailures(t *testing.T) {
	catalog := config.Default().Catalog
	names := Select(catalog, All)
	p := &scriptedPuller{fail: map[string]bool{names[0]: true, names[3]: true}}
	rep := PullAll(context.Background(), p, catalog, names, zerolog.Nop())
	assert.Equal(t, names, p.calls)
	assert.Equal(t, []string{names[0], names[3]}, rep.Failed())
	assert.Len(t, rep.Succeeded(), len(names)-2)
}

func TestPullAll_UnknownNameAttemptedOnce(t *testing.T) {
	catalog := config.Default().Catalog
	p := &scriptedPuller{fail: map[string]bool{"bogus:1b": true}}
	rep := PullAll(context.Background(), p, catalog, Select(catalog, "bogus:1b"), zerolog.Nop())
	assert.Equal(t, []string{"bogus:1b"}, p.calls)
	require.Len(t, rep.Results, 1)
	assert.False(t, rep.Results[0].InCatalog)
	assert.Error(t, rep.Results[0].Err)
}

func TestPullAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptedPuller{}
	rep := PullAll(ctx, p, nil, []string{"a", "b"}, zerolog.Nop())
	assert.Empty(t, p.calls)
	assert.Equal(t, []string{"a", "b"}, rep.Failed())
}

func TestCLIPuller(t *testing.T) {
	r := executil.NewFakeRunner("ollama")
	p := CLIPuller{Runner: r, Binary: "ollama", Timeout: time.Hour}
	require.NoError(t, p.Pull(context.Background(), "mistral:7b"))
	assert.Equal(t, []string{"ollama pull mistral:7b"}, r.Lines())
	assert.Equal(t, time.Hour, r.Calls()[0].Timeout)
}

// fakeRunnerAPI mimics the runner's pull endpoint.
func fakeRunnerAPI(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req pullRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		switch req.Name {
		case "missing:1b":
			fmt.Fprintln(w, `{"status":"pulling manifest"}`)
			fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
		case "truncated:1b":
			fmt.Fprintln(w, `{"status":"pulling manifest"}`)
			fmt.Fprintln(w, `{"status":"downloading","total":100,"completed":10}`)
		case "forbidden:1b":
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			fmt.Fprintln(w, `{"status":"pulling manifest"}`)
			fmt.Fprintln(w, `not json`)
			fmt.Fprintln(w, `{"status":"downloading","total":100,"completed":50}`)
			fmt.Fprintln(w, `{"status":"downloading","total":100,"completed":100}`)
			fmt.Fprintln(w, `{"status":"success"}`)
		}
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIPuller(t *testing.T) {
	srv := fakeRunnerAPI(t)
	p := APIPuller{BaseURL: srv.URL + "/", Client: srv.Client(), Timeout: 5 * time.Second, Log: zerolog.Nop()}
	ctx := context.Background()
	require.NoError(t, p.Pull(ctx, "llama3.2:1b"))
	assert.ErrorContains(t, p.Pull(ctx, "missing:1b"), "file does not exist")
	assert.ErrorContains(t, p.Pull(ctx, "truncated:1b"), "stream ended")
	assert.ErrorContains(t, p.Pull(ctx, "forbidden:1b"), "403")
}
