package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Patcher applies small key-value overwrites to structured config and
// manifest files owned by the installed application. Untouched keys are
// preserved verbatim; edits overwrite (or create) top-level keys.
type Patcher struct{}

// NewPatcher creates a Patcher.
func NewPatcher() *Patcher { return &Patcher{} }

// Patch reads path, applies every edit as a top-level overwrite and writes
// the result back atomically. Files that do not parse as JSON are given a
// second chance as JSONC (comments, trailing commas); anything else is a
// *ConfigError.
func (p *Patcher) Patch(path string, edits map[string]any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(data)
	if !gjson.Valid(content) {
		standardized, herr := hujson.Standardize(data)
		if herr != nil {
			return &ConfigError{Path: path, Err: herr}
		}
		content = string(standardized)
	}

	// Deterministic edit order keeps repeated runs byte-identical.
	keys := make([]string, 0, len(edits))
	for k := range edits {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		content, err = sjson.Set(content, escapeJSONKey(k), edits[k])
		if err != nil {
			return &ConfigError{Path: path, Err: err}
		}
	}

	return writeFileAtomic(path, []byte(content), 0o644)
}

// PatchExisting patches path only if it exists. Reports whether a patch was
// applied.
func (p *Patcher) PatchExisting(path string, edits map[string]any) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := p.Patch(path, edits); err != nil {
		return false, err
	}
	return true, nil
}

// PatchPerUser applies the same edits to every per-user copy of a config
// file: each home directory matched by one of the glob patterns is checked
// for rel, and existing copies are patched. The scan is a single bounded
// glob per pattern, never a recursive traversal. Returns the paths patched.
func (p *Patcher) PatchPerUser(patterns []string, rel string, edits map[string]any) ([]string, error) {
	var patched []string
	for _, pattern := range patterns {
		homes, err := filepath.Glob(pattern)
		if err != nil {
			return patched, fmt.Errorf("bad home pattern %q: %w", pattern, err)
		}
		for _, home := range homes {
			path := filepath.Join(home, rel)
			ok, err := p.PatchExisting(path, edits)
			if err != nil {
				return patched, err
			}
			if ok {
				patched = append(patched, path)
			}
		}
	}
	return patched, nil
}

// writeFileAtomic writes via a temp file and rename so a crash never leaves
// a half-written config behind.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// escapeJSONKey escapes a key for sjson path syntax, which treats dots and
// wildcards as separators.
func escapeJSONKey(key string) string {
	for _, c := range key {
		if c == '.' || c == '*' || c == '?' || c == '#' {
			return `\` + key
		}
	}
	return key
}
