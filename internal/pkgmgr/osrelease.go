package pkgmgr

import (
	"os"
	"strings"
)

// FamilyFromOSRelease derives an OS family from /etc/os-release content,
// preferring the first ID_LIKE entry we know, then ID.
func FamilyFromOSRelease(data string) string {
	var id string
	var like []string
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		val = strings.ToLower(strings.Trim(val, `"'`))
		switch key {
		case "ID":
			id = val
		case "ID_LIKE":
			like = strings.Fields(val)
		}
	}
	for _, l := range like {
		if _, ok := byFamily[l]; ok {
			return l
		}
	}
	if strings.Contains(id, "arch") {
		return "arch"
	}
	if strings.Contains(id, "suse") {
		return "suse"
	}
	return id
}

// ReadOSFamily reads /etc/os-release; empty when unavailable.
func ReadOSFamily() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return ""
	}
	return FamilyFromOSRelease(string(data))
}
