package provision

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"llmhost/internal/config"
	"llmhost/internal/hardware"
	"llmhost/internal/installer"
	"llmhost/internal/models"
	"llmhost/internal/tools"
	"llmhost/internal/tuning"
)

// Summary is everything a run learned and changed.
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	ScriptCopy      string
	ScriptCopySaved bool

	Host           hardware.Info
	PackageManager string
	Packages       []string
	Runner         installer.Result

	TuningVariable string
	Parallel       int
	Tier           tuning.Tier
	EnvFile        string

	Tools           []tools.Result
	Assistant       *tools.Result
	Recommendations []config.Model
	Pulls           *models.PullReport

	Steps []StepResult
	Err   error
}

func (s *Summary) finish(err error) {
	s.FinishedAt = time.Now()
	s.Err = err
}

// OK reports whether the run finished without a fatal error.
func (s Summary) OK() bool { return s.Err == nil }

// Print renders the end-of-run report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== llmhost summary ===")
	if s.DryRun {
		fmt.Fprintln(w, "(dry run: no changes were made)")
	}
	if s.Host.RAMGiB > 0 || s.Host.TotalRAMBytes > 0 {
		fmt.Fprintf(w, "Host:            %s\n", s.Host)
	}
	if s.PackageManager != "" {
		fmt.Fprintf(w, "Package manager: %s\n", s.PackageManager)
	}
	if s.Runner.BinaryPath != "" {
		fmt.Fprintf(w, "Model runner:    %s\n", s.Runner.BinaryPath)
	}
	if s.TuningVariable != "" {
		fmt.Fprintf(w, "Tuning:          %s=%d (%s tier)\n", s.TuningVariable, s.Parallel, s.Tier)
	}
	if s.EnvFile != "" {
		fmt.Fprintf(w, "Env file:        %s\n", s.EnvFile)
	}
	if s.ScriptCopy != "" {
		fmt.Fprintf(w, "Script copy:     %s\n", s.ScriptCopy)
	}

	if len(s.Steps) > 0 {
		fmt.Fprintln(w)
		table := tablewriter.NewTable(w,
			tablewriter.WithHeader([]string{"STEP", "OUTCOME", "TOOK", "DETAIL"}),
		)
		for _, st := range s.Steps {
			detail := st.Detail
			if st.Err != nil {
				detail = st.Err.Error()
			}
			_ = table.Append([]string{st.Name, string(st.Outcome), st.Duration.Round(time.Millisecond).String(), detail})
		}
		_ = table.Render()
	}

	if len(s.Tools) > 0 || s.Assistant != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tools:")
		list := s.Tools
		if s.Assistant != nil {
			list = append(append([]tools.Result(nil), list...), *s.Assistant)
		}
		for _, t := range list {
			fmt.Fprintf(w, "  %-12s %s\n", t.Name, t.Outcome)
		}
	}

	if len(s.Recommendations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Recommended models for %d GiB:\n", s.Host.RAMGiB)
		for _, m := range s.Recommendations {
			fmt.Fprintf(w, "  %-18s >=%2d GiB  %s\n", m.Name, m.MinRAMGiB, m.Description)
		}
	}

	if s.Pulls != nil {
		fmt.Fprintln(w)
		if ok := s.Pulls.Succeeded(); len(ok) > 0 {
			fmt.Fprintf(w, "Pulled:          %s\n", strings.Join(ok, ", "))
		}
		if bad := s.Pulls.Failed(); len(bad) > 0 {
			fmt.Fprintf(w, "Pull failures:   %s\n", strings.Join(bad, ", "))
		}
	}

	fmt.Fprintln(w)
	if s.Err != nil {
		fmt.Fprintf(w, "FAILED: %v\n", s.Err)
		return
	}
	fmt.Fprintf(w, "Done in %s.\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
}

func itoa(n int) string { return strconv.Itoa(n) }
