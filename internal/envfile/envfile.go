// Package envfile persists the runner tuning variable.
package envfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/moby/sys/atomicwriter"
)

// Set exports key=value into the current process environment and merges it
// into the dotenv file at path, keeping other keys. An empty path only sets
// the process environment.
func Set(path, key string, value int) error {
	v := strconv.Itoa(value)
	if err := os.Setenv(key, v); err != nil {
		return fmt.Errorf("setenv %s: %w", key, err)
	}
	if path == "" {
		return nil
	}
	vars, err := Read(path)
	if err != nil {
		return err
	}
	vars[key] = v
	content, err := godotenv.Marshal(vars)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create env dir: %w", err)
	}
	if err := atomicwriter.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read returns the variables in path; a missing file is empty.
func Read(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vars, nil
}
