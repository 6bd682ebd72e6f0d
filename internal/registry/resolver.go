package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inferd/internal/common/fsutil"
)

// Model is a resolved on-disk model file.
type Model struct {
	// ID is the model filename without extension, used as the public id.
	ID string
	// Path is the absolute path to the .gguf file.
	Path string
}

// Resolve turns the user-supplied model reference into a concrete file.
// A reference containing a path separator or a .gguf suffix is treated as a
// direct path; anything else is looked up by id in modelsDir.
func Resolve(ref, modelsDir string) (Model, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Model{}, fmt.Errorf("model reference is empty")
	}
	if strings.ContainsRune(ref, os.PathSeparator) || strings.HasSuffix(strings.ToLower(ref), ".gguf") {
		return resolvePath(ref)
	}
	models, err := Scan(modelsDir)
	if err != nil {
		return Model{}, err
	}
	for _, m := range models {
		if m.ID == ref {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("model %q not found in %s", ref, modelsDir)
}

func resolvePath(ref string) (Model, error) {
	p, err := fsutil.ExpandHome(ref)
	if err != nil {
		return Model{}, err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return Model{}, fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return Model{}, fmt.Errorf("model file: %w", err)
	}
	if fi.IsDir() {
		return Model{}, fmt.Errorf("model path is a directory: %s", abs)
	}
	return Model{ID: idFromFilename(filepath.Base(abs)), Path: abs}, nil
}

// Scan lists *.gguf files in dir (case-insensitive, non-recursive).
func Scan(dir string) ([]Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, Model{ID: idFromFilename(name), Path: filepath.Join(abs, name)})
	}
	return models, nil
}

func idFromFilename(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
