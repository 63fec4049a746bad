package models

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"llmhost/internal/executil"
)

// Puller downloads one model into the runner's store.
type Puller interface {
	Pull(ctx context.Context, name string) error
}

// CLIPuller runs "<binary> pull <name>".
type CLIPuller struct {
	Runner  executil.Runner
	Binary  string
	Timeout time.Duration
}

func (p CLIPuller) Pull(ctx context.Context, name string) error {
	return p.Runner.Run(ctx, executil.Cmd{Path: p.Binary, Args: []string{"pull", name}, Timeout: p.Timeout})
}

// APIPuller streams POST /api/pull from the runner's HTTP API.
type APIPuller struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
	Log     zerolog.Logger
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type pullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (p APIPuller) Pull(ctx context.Context, name string) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	body, err := json.Marshal(pullRequest{Name: name, Stream: true})
	if err != nil {
		return fmt.Errorf("marshal pull request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.BaseURL, "/")+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("pull %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pull %s: status %s: %s", name, resp.Status, strings.TrimSpace(string(msg)))
	}

	l := p.Log.With().Str("model", name).Logger()
	var last string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var pr pullProgress
		if err := json.Unmarshal(line, &pr); err != nil {
			continue
		}
		if pr.Error != "" {
			return fmt.Errorf("pull %s: %s", name, pr.Error)
		}
		if pr.Status != last {
			l.Info().Msg(pr.Status)
			last = pr.Status
		} else if pr.Total > 0 {
			l.Debug().Int64("completed", pr.Completed).Int64("total", pr.Total).Msg(pr.Status)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("pull %s: read stream: %w", name, err)
	}
	if last != "success" {
		return fmt.Errorf("pull %s: stream ended with status %q", name, last)
	}
	return nil
}
