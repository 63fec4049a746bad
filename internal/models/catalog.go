// Package models knows the model catalog, recommends models for a host and
// pulls them through the model runner.
package models

import (
	"sort"
	"strings"

	"llmhost/internal/config"
)

// All selects every catalog model in Select.
const All = "all"

// Recommend returns catalog models that fit in ramGiB, largest requirement
// first; ties keep catalog order.
func Recommend(catalog []config.Model, ramGiB int) []config.Model {
	var out []config.Model
	for _, m := range catalog {
		if m.MinRAMGiB <= ramGiB {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinRAMGiB > out[j].MinRAMGiB })
	return out
}

// Select resolves the --install-models argument. "all" (any case) expands to
// the whole catalog; any other value is a single model name, attempted even
// when it is not in the catalog.
func Select(catalog []config.Model, arg string) []string {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil
	}
	if strings.EqualFold(arg, All) {
		names := make([]string, len(catalog))
		for i, m := range catalog {
			names[i] = m.Name
		}
		return names
	}
	return []string{arg}
}

// Lookup finds a catalog entry by name.
func Lookup(catalog []config.Model, name string) (config.Model, bool) {
	for _, m := range catalog {
		if m.Name == name {
			return m, true
		}
	}
	return config.Model{}, false
}
