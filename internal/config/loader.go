package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llmhost/internal/common/fsutil"
)

// Load reads a configuration file based on its extension and overlays it on
// Default(). Fields the file omits keep their default values; lists present in
// the file replace the default lists entirely.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := decodeJSON(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// decodeJSON overlays b onto cfg. encoding/json decodes into the existing
// elements of a non-empty slice, so every list the document names is reset
// first to keep default entries from leaking into the file's entries.
func decodeJSON(b []byte, cfg *Config) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return err
	}
	if _, ok := top["tools"]; ok {
		cfg.Tools = nil
	}
	if _, ok := top["catalog"]; ok {
		cfg.Catalog = nil
	}
	if raw, ok := top["packages"]; ok {
		var pkgs map[string]json.RawMessage
		if err := json.Unmarshal(raw, &pkgs); err != nil {
			return err
		}
		if _, ok := pkgs["base"]; ok {
			cfg.Packages.Base = nil
		}
		if _, ok := pkgs["accel"]; ok {
			cfg.Packages.Accel = nil
		}
	}
	if raw, ok := top["assistant"]; ok {
		var a map[string]json.RawMessage
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		if _, ok := a["packages"]; ok {
			cfg.Assistant.Packages = nil
		}
	}
	return json.Unmarshal(b, cfg)
}

// ExpandPaths resolves a leading "~" in every file path setting.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.LogFile, &c.ScriptCopyPath, &c.EnvFile, &c.MetricsTextfile} {
		v, err := fsutil.ExpandHome(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = v
	}
	return nil
}

// LoadOrDefault loads path when it is non-empty and returns Default() otherwise.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
