// Package env gathers the variables rrbot.yaml is rendered with: the process environment
// laid over the .env files the config lists.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// Vars represents a simple string-to-string map of variables.
type Vars map[string]string

// FromOS builds a Vars map from the current process environment.
func FromOS() Vars {
	return FromList(os.Environ())
}

// FromList parses KEY=VALUE entries. Entries without "=" or with an empty key are dropped.
func FromList(list []string) Vars {
	out := make(Vars, len(list))
	for _, kv := range list {
		key, value, ok := strings.Cut(kv, "=")
		if ok && key != "" {
			out[key] = value
		}
	}
	return out
}

// Merge returns a new map holding every set in order; later sets win.
func Merge(sets ...Vars) Vars {
	out := make(Vars)
	for _, s := range sets {
		maps.Copy(out, s)
	}
	return out
}

// Lookup returns the trimmed value of key and whether it is present and non-empty.
func (v Vars) Lookup(key string) (string, bool) {
	val := strings.TrimSpace(v[key])
	return val, val != ""
}

// Keys returns the sorted names starting with prefix whose value is not blank.
func (v Vars) Keys(prefix string) []string {
	var out []string
	for k := range v {
		if _, ok := v.Lookup(k); ok && strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// File is one entry of an envFiles list.
type File struct {
	Path string
	// Optional files are skipped when they do not exist. They are written as "?name".
	Optional bool
}

// ParseFile resolves an envFiles entry against baseDir. Blank entries report false.
func ParseFile(entry, baseDir string) (File, bool) {
	entry = strings.TrimSpace(entry)
	f := File{Optional: strings.HasPrefix(entry, "?")}
	entry = strings.TrimSpace(strings.TrimPrefix(entry, "?"))
	if entry == "" {
		return File{}, false
	}
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(baseDir, entry)
	}
	f.Path = entry
	return f, true
}

// LoadEnvFile reads a single dotenv file.
func LoadEnvFile(path string) (Vars, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}
	return Vars(vars), nil
}

// LoadEnvFiles reads the listed dotenv files in order, later files overriding earlier ones.
func LoadEnvFiles(baseDir string, entries []string) (Vars, error) {
	result := make(Vars)
	for _, entry := range entries {
		f, ok := ParseFile(entry, baseDir)
		if !ok {
			continue
		}
		vars, err := LoadEnvFile(f.Path)
		switch {
		case err == nil:
			maps.Copy(result, vars)
		case f.Optional && errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return nil, fmt.Errorf("load env file %q: %w", f.Path, err)
		}
	}
	return result, nil
}
