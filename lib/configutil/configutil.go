package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Validator is implemented by config structs that need checking after
// all layers have been merged.
type Validator interface {
	Validate() error
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

func localName(name string) string {
	prefix, ext := splitExt(name)
	if ext == "" {
		return prefix + ".local"
	}
	return fmt.Sprintf("%s.local.%s", prefix, ext)
}

// decodeFile reads a json5 file, expanding $VAR and ${VAR} references
// against the environment so secrets can stay out of the file.
func decodeFile[T any](path string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, false, nil
	}
	expanded := os.ExpandEnv(string(contents))
	err = json5.Unmarshal([]byte(expanded), &out)
	if err != nil {
		return out, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig reads `name` (a path with an extension) and merges
// `<name>.local.<ext>` on top of it, the local file wins on conflicts.
// Values already present in `defaults` are kept unless a file overrides them.
func ReadConfig[T any](name string, defaults T) (T, error) {
	out := defaults

	base, foundBase, err := decodeFile[T](name)
	if err != nil {
		return out, err
	}
	if foundBase {
		err = mergo.Merge(&out, base, mergo.WithOverride)
		if err != nil {
			return out, err
		}
	}

	localPath := localName(name)
	local, foundLocal, err := decodeFile[T](localPath)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, local, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !foundBase && !foundLocal {
		return out, os.ErrNotExist
	}

	if v, ok := any(&out).(Validator); ok {
		err = v.Validate()
		if err != nil {
			return out, fmt.Errorf("invalid config %s: %w", name, err)
		}
	}
	return out, nil
}

// ReadRecursively is ReadConfig, but walks up from the working directory
// until it finds a directory containing `name`.
func ReadRecursively[T any](name string, defaults T) (T, error) {
	current, err := os.Getwd()
	if err != nil {
		return defaults, err
	}

	for {
		config, err := ReadConfig(filepath.Join(current, name), defaults)
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return defaults, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return defaults, os.ErrNotExist
		}
		current = parent
	}
}
