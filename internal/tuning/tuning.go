// Package tuning maps detected memory to the model runner's parallel request
// setting. It is a pure lookup with no system access.
package tuning

import (
	"fmt"

	"llmhost/internal/config"
)

// Policy selects how the moderate RAM band is treated.
type Policy string

const (
	// PolicyObserved reproduces the deployed behavior: every host at or above
	// the low threshold gets the maximum, so the moderate band never applies.
	PolicyObserved Policy = "observed"
	// PolicyLinear applies (ram/divisor)+offset between the low and high thresholds.
	PolicyLinear Policy = "linear"
)

// Table holds the thresholds from config.Tuning.
type Table struct {
	Policy      Policy
	LowRAMGiB   int
	HighRAMGiB  int
	MinParallel int
	MaxParallel int
	Divisor     int
	Offset      int
}

// FromConfig builds a Table from configuration.
func FromConfig(c config.Tuning) Table {
	return Table{
		Policy:      Policy(c.Policy),
		LowRAMGiB:   c.LowRAMGiB,
		HighRAMGiB:  c.HighRAMGiB,
		MinParallel: c.MinParallel,
		MaxParallel: c.MaxParallel,
		Divisor:     c.Divisor,
		Offset:      c.Offset,
	}
}

// Default is the built-in table (observed policy).
func Default() Table { return FromConfig(config.Default().Tuning) }

// Tier names the band a RAM size falls into.
type Tier string

const (
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
)

// Parallel returns the tuning value and tier for ramGiB.
//
// Documented thresholds: below low -> min; low..high-1 -> (ram/divisor)+offset;
// high and above -> max. Under PolicyObserved the moderate band is unreachable
// and low..high-1 also yields max.
func (t Table) Parallel(ramGiB int) (int, Tier) {
	switch {
	case ramGiB < t.LowRAMGiB:
		return t.MinParallel, TierLow
	case ramGiB >= t.HighRAMGiB:
		return t.MaxParallel, TierHigh
	case t.Policy == PolicyLinear:
		return clamp((ramGiB/t.Divisor)+t.Offset, t.MinParallel, t.MaxParallel), TierModerate
	default:
		return t.MaxParallel, TierHigh
	}
}

// Describe renders the table as the thresholds a user would read in docs.
func (t Table) Describe() string {
	moderate := fmt.Sprintf("(ram/%d)+%d", t.Divisor, t.Offset)
	if t.Policy != PolicyLinear {
		moderate = fmt.Sprintf("%d (observed policy)", t.MaxParallel)
	}
	return fmt.Sprintf("<%d GiB -> %d; %d-%d GiB -> %s; >=%d GiB -> %d",
		t.LowRAMGiB, t.MinParallel, t.LowRAMGiB, t.HighRAMGiB-1, moderate, t.HighRAMGiB, t.MaxParallel)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
