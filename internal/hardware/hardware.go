// Package hardware detects the facts that drive provisioning decisions:
// total memory, the AVX2 CPU flag and the OS family.
package hardware

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/docker/go-units"
	"github.com/elastic/go-sysinfo"
	"github.com/jaypipes/ghw"
	"github.com/rs/zerolog"
)

const gib = 1 << 30

// Info is a snapshot of the host.
type Info struct {
	TotalRAMBytes uint64 `json:"total_ram_bytes"`
	// RAMGiB is total memory floored to whole gibibytes.
	RAMGiB   int    `json:"ram_gib"`
	AVX2     bool   `json:"avx2"`
	OSFamily string `json:"os_family"`
	OSName   string `json:"os_name"`
	Arch     string `json:"arch"`
}

func (i Info) String() string {
	return fmt.Sprintf("ram=%s (%d GiB) avx2=%t os=%s/%s arch=%s",
		units.BytesSize(float64(i.TotalRAMBytes)), i.RAMGiB, i.AVX2, i.OSFamily, i.OSName, i.Arch)
}

// RAMToGiB floors a byte count to whole gibibytes.
func RAMToGiB(total uint64) int { return int(total / gib) }

// Probe detects host hardware.
type Probe interface {
	Detect(ctx context.Context) (Info, error)
}

// SystemProbe reads the running host: memory and OS via go-sysinfo, CPU flags via ghw.
type SystemProbe struct {
	Log zerolog.Logger
}

// Detect fails only when memory cannot be read; a missing CPU flag table
// reports AVX2 as absent.
func (p SystemProbe) Detect(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	host, err := sysinfo.Host()
	if err != nil {
		return Info{}, fmt.Errorf("read host info: %w", err)
	}
	mem, err := host.Memory()
	if err != nil {
		return Info{}, fmt.Errorf("read memory: %w", err)
	}
	info := Info{
		TotalRAMBytes: mem.Total,
		RAMGiB:        RAMToGiB(mem.Total),
		Arch:          runtime.GOARCH,
	}
	if hi := host.Info(); hi.OS != nil {
		info.OSFamily = hi.OS.Family
		info.OSName = hi.OS.Platform
	}
	avx2, err := detectAVX2()
	if err != nil {
		p.Log.Warn().Err(err).Msg("cpu flags unavailable; assuming no AVX2")
	}
	info.AVX2 = avx2
	return info, nil
}

func detectAVX2() (bool, error) {
	cpu, err := ghw.CPU()
	if err != nil {
		return false, fmt.Errorf("read cpu info: %w", err)
	}
	for _, proc := range cpu.Processors {
		if HasFlag(proc.Capabilities, "avx2") {
			return true, nil
		}
	}
	return false, nil
}

// HasFlag reports whether flag appears in a CPU capability list.
func HasFlag(caps []string, flag string) bool {
	for _, c := range caps {
		if strings.EqualFold(strings.TrimSpace(c), flag) {
			return true
		}
	}
	return false
}

// StaticProbe returns a fixed Info; used for dry runs and tests.
type StaticProbe struct {
	Info Info
	Err  error
}

func (s StaticProbe) Detect(context.Context) (Info, error) { return s.Info, s.Err }
