package models

import (
	"context"

	"github.com/rs/zerolog"

	"llmhost/internal/config"
)

// PullResult is the outcome for one model.
type PullResult struct {
	Name      string
	InCatalog bool
	Err       error
}

// PullReport summarizes a batch of pulls.
type PullReport struct {
	Results []PullResult
}

// Succeeded lists models pulled successfully.
func (r PullReport) Succeeded() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Name)
		}
	}
	return out
}

// Failed lists models whose pull failed.
func (r PullReport) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Name)
		}
	}
	return out
}

// PullAll attempts every name once, in order, logging and continuing past
// failures. Only context cancellation stops the batch early.
func PullAll(ctx context.Context, p Puller, catalog []config.Model, names []string, l zerolog.Logger) PullReport {
	var rep PullReport
	inCatalog := make(map[string]bool, len(catalog))
	for _, m := range catalog {
		inCatalog[m.Name] = true
	}
	for _, name := range names {
		if ctx.Err() != nil {
			rep.Results = append(rep.Results, PullResult{Name: name, InCatalog: inCatalog[name], Err: ctx.Err()})
			continue
		}
		ml := l.With().Str("model", name).Logger()
		if !inCatalog[name] {
			ml.Warn().Msg("model is not in the catalog; attempting pull anyway")
		}
		ml.Info().Msg("pulling model")
		err := p.Pull(ctx, name)
		if err != nil {
			ml.Error().Err(err).Msg("model pull failed; continuing")
		} else {
			ml.Info().Msg("model pulled")
		}
		rep.Results = append(rep.Results, PullResult{Name: name, InCatalog: inCatalog[name], Err: err})
	}
	return rep
}
